package local

import (
	"context"
	"errors"

	authsession "github.com/MrEthical07/authsession"
	"github.com/MrEthical07/authsession/idtoken"
)

// ChooseFunc asks the user which identity to continue with. Returning
// authsession.ErrCancelled means the picker was dismissed.
type ChooseFunc func(ctx context.Context) (idtoken.Identity, error)

// Picker is an authsession.IdentityProvider that signs the chosen identity
// into a token, standing in for a platform one-tap sheet.
type Picker struct {
	signer     *idtoken.Signer
	providerID string
	choose     ChooseFunc
}

var _ authsession.IdentityProvider = (*Picker)(nil)

func NewPicker(signer *idtoken.Signer, providerID string, choose ChooseFunc) (*Picker, error) {
	if signer == nil {
		return nil, errors.New("local: picker needs a signer")
	}
	if choose == nil {
		return nil, errors.New("local: picker needs a choose function")
	}
	if providerID == "" {
		providerID = "local"
	}
	return &Picker{signer: signer, providerID: providerID, choose: choose}, nil
}

// Fixed returns a ChooseFunc that always picks id.
func Fixed(id idtoken.Identity) ChooseFunc {
	return func(context.Context) (idtoken.Identity, error) { return id, nil }
}

// Dismissed returns a ChooseFunc that behaves like a closed picker.
func Dismissed() ChooseFunc {
	return func(context.Context) (idtoken.Identity, error) { return idtoken.Identity{}, authsession.ErrCancelled }
}

func (p *Picker) BeginSignIn(ctx context.Context) (authsession.IdentityToken, error) {
	id, err := p.choose(ctx)
	if err != nil {
		return authsession.IdentityToken{}, err
	}
	if err := ctx.Err(); err != nil {
		return authsession.IdentityToken{}, err
	}

	value, err := p.signer.Sign(id)
	if err != nil {
		return authsession.IdentityToken{}, err
	}
	return authsession.IdentityToken{Value: value, ProviderID: p.providerID}, nil
}
