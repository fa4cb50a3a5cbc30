package main

import (
	"bufio"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	authsession "github.com/MrEthical07/authsession"
	"github.com/MrEthical07/authsession/idtoken"
	"github.com/MrEthical07/authsession/internal/logging"
	promexport "github.com/MrEthical07/authsession/metrics/export/prometheus"
	"github.com/MrEthical07/authsession/provider/identitytoolkit"
	"github.com/MrEthical07/authsession/provider/local"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

const envKey = "env"

func newApp(in io.Reader, out io.Writer) *cli.App {
	return &cli.App{
		Name:      "authsession",
		Usage:     "Sign in from the terminal",
		Version:   fmt.Sprintf("%s (commit: %s)", Version, Commit),
		Reader:    in,
		Writer:    out,
		ErrWriter: out,
		Flags:     globalFlags(),
		Commands: []*cli.Command{
			signInCommand(),
			signUpCommand(),
			signOutCommand(),
			statusCommand(),
			hashPasswordCommand(),
		},
		Before: func(c *cli.Context) error {
			cfg, err := loadConfig(c.String("config"))
			if err != nil {
				return err
			}
			out := &syncWriter{w: c.App.Writer}
			cfg.Log.Output = c.App.ErrWriter
			if c.App.ErrWriter == c.App.Writer {
				cfg.Log.Output = out
			}
			logger, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			c.App.Metadata[envKey] = &env{
				cfg:         cfg,
				logger:      logger,
				in:          bufio.NewReader(c.App.Reader),
				tty:         terminalInput(c.App.Reader),
				out:         out,
				metricsAddr: c.String("metrics-addr"),
			}
			return nil
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML configuration file",
			EnvVars: []string{"AUTHSESSION_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "metrics-addr",
			Usage: "Serve Prometheus metrics on this address while the command runs",
		},
	}
}

// env is shared by every command of one invocation.
type env struct {
	cfg         fileConfig
	logger      *slog.Logger
	in          *bufio.Reader
	tty         *os.File
	out         io.Writer
	metricsAddr string
}

func getEnv(c *cli.Context) *env {
	e, _ := c.App.Metadata[envKey].(*env)
	return e
}

// readLine prompts and returns one trimmed line. EOF yields an empty answer.
func (e *env) readLine(prompt string) (string, error) {
	fmt.Fprint(e.out, prompt)
	line, err := e.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readSecret prompts for a secret without echo when stdin is a terminal and
// falls back to readLine for piped input.
func (e *env) readSecret(prompt string) (string, error) {
	if e.tty == nil {
		return e.readLine(prompt)
	}
	fmt.Fprint(e.out, prompt)
	secret, err := term.ReadPassword(int(e.tty.Fd()))
	fmt.Fprintln(e.out)
	if err != nil {
		return "", err
	}
	return string(secret), nil
}

// terminalInput returns r as a file when it is an interactive terminal.
func terminalInput(r io.Reader) *os.File {
	f, ok := r.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return f
}

// newClient wires the configured provider, Redis and metrics into a Client.
// The returned cleanup closes everything the client depends on.
func (e *env) newClient() (*authsession.Client, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	auth := e.cfg.Auth
	b := authsession.New().WithLogger(e.logger)

	if e.cfg.Redis.Addr != "" {
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{e.cfg.Redis.Addr},
			Password: e.cfg.Redis.Password,
			DB:       e.cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = rdb.Close() })
		b.WithRedis(rdb)
	}

	switch strings.ToLower(e.cfg.Provider.Kind) {
	case providerIdentityToolkit:
		tk := e.cfg.Provider.IdentityToolkit
		p, err := identitytoolkit.New(identitytoolkit.Config{
			BaseURL:    tk.BaseURL,
			APIKey:     tk.APIKey,
			RequestURI: tk.RequestURI,
		})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		// The toolkit checks identity tokens itself.
		auth.Provider.VerifyIdentityTokens = false
		b.WithAuthProvider(p).WithIdentityProvider(&tokenPrompt{env: e})
	default:
		p, picker, verifier, err := e.localProvider()
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		b.WithAuthProvider(p).WithIdentityProvider(picker).WithTokenVerifier(verifier)
	}

	if e.metricsAddr != "" {
		auth.Metrics.Enabled = true
		auth.Metrics.EnableLatencyHistograms = true
	}

	client, err := b.WithConfig(auth).Build()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, client.Close)

	if e.metricsAddr != "" {
		stop, err := serveMetrics(e.metricsAddr, client, e.logger)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, stop)
	}
	return client, cleanup, nil
}

// localProvider builds the in-memory user table and a one-tap picker signed
// with a key that lives only as long as this process.
func (e *env) localProvider() (*local.Provider, *local.Picker, *idtoken.Verifier, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, nil, err
	}
	signer, err := idtoken.NewSigner(idtoken.Config{
		SigningMethod: idtoken.MethodEd25519,
		PrivateKey:    priv,
		Issuer:        "authsession-cli",
		TTL:           5 * time.Minute,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	verifier, err := idtoken.NewVerifier(signer.VerifierConfig())
	if err != nil {
		return nil, nil, nil, err
	}

	lc := e.cfg.Provider.Local
	users := make([]local.User, 0, len(lc.Users))
	for _, u := range lc.Users {
		users = append(users, local.User{ID: u.ID, Email: u.Email, PasswordHash: u.PasswordHash, Disabled: u.Disabled})
	}
	p, err := local.NewProvider(local.Config{Hash: lc.Hash, Users: users, Verifier: verifier})
	if err != nil {
		return nil, nil, nil, err
	}

	picker, err := local.NewPicker(signer, e.cfg.OneTap.ProviderID, e.chooseAccount)
	if err != nil {
		return nil, nil, nil, err
	}
	return p, picker, verifier, nil
}

// chooseAccount is the terminal stand-in for a one-tap sheet.
func (e *env) chooseAccount(context.Context) (idtoken.Identity, error) {
	ot := e.cfg.OneTap
	if ot.Subject == "" && ot.Email == "" {
		fmt.Fprintln(e.out, "No saved account to continue with.")
		return idtoken.Identity{}, authsession.ErrCancelled
	}
	label := ot.Email
	if ot.Name != "" {
		label = ot.Name + " <" + ot.Email + ">"
	}
	answer, err := e.readLine("Continue as " + label + "? [Y/n] ")
	if err != nil {
		return idtoken.Identity{}, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "", "y", "yes":
	default:
		return idtoken.Identity{}, authsession.ErrCancelled
	}

	subject := ot.Subject
	if subject == "" {
		subject = ot.Email
	}
	return idtoken.Identity{Subject: subject, Email: ot.Email, EmailVerified: ot.Email != "", Name: ot.Name}, nil
}

// tokenPrompt reads an identity token pasted from another client. An empty
// answer dismisses the picker.
type tokenPrompt struct {
	env *env
}

func (t *tokenPrompt) BeginSignIn(context.Context) (authsession.IdentityToken, error) {
	value, err := t.env.readLine("Paste identity token: ")
	if err != nil {
		return authsession.IdentityToken{}, err
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return authsession.IdentityToken{}, authsession.ErrCancelled
	}
	return authsession.IdentityToken{Value: value, ProviderID: t.env.cfg.OneTap.ProviderID}, nil
}

func serveMetrics(addr string, client *authsession.Client, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promexport.Handler(promexport.NewCollector(client)))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
