// Package generator builds entity records one at a time.
package generator

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"pkg.jsn.cam/datagen/pkg/datagen"
	"pkg.jsn.cam/datagen/pkg/datagen/idalloc"
	"pkg.jsn.cam/datagen/pkg/datagen/sample"
	"pkg.jsn.cam/datagen/pkg/datagen/values"
)

// ProviderCatalog is the fixed set of payment brands providers are named after.
var ProviderCatalog = []string{
	"Visa",
	"Mastercard",
	"American Express",
	"PayPal",
	"Stripe",
	"Square",
	"Alipay",
	"WeChat Pay",
	"Apple Pay",
	"Google Pay",
	"Venmo",
	"Zelle",
	"Klarna",
	"Affirm",
	"Adyen",
}

// Amount bounds in cents. Generated amounts lie strictly between them.
const (
	MinAmountCents = 100    // 1.00
	MaxAmountCents = 100000 // 1000.00
)

// IDs is a read-only view over previously generated identifiers.
type IDs interface {
	Len() int
	At(i int) (int64, error)
}

// Generator combines allocated ids, sampled foreign keys and provider values.
type Generator struct {
	ids     idalloc.Allocator
	sampler *sample.Sampler
	values  values.Provider
	rand    *rand.Rand
	now     func() time.Time
}

// New creates a generator. now defaults to time.Now.
func New(ids idalloc.Allocator, sampler *sample.Sampler, vp values.Provider, r *rand.Rand, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{
		ids:     ids,
		sampler: sampler,
		values:  vp,
		rand:    r,
		now:     now,
	}
}

// User creates the next user.
func (g *Generator) User() datagen.User {
	name := g.values.FullName()
	return datagen.User{
		ID:    g.ids.Next(datagen.KindUser),
		Name:  name,
		Email: EmailFor(name, g.values.EmailDomain()),
		Phone: g.values.Phone(),
	}
}

// Address creates the address owned by userID.
func (g *Generator) Address(userID int64) datagen.Address {
	return datagen.Address{
		ID:         g.ids.Next(datagen.KindAddress),
		UserID:     userID,
		Street:     g.values.Street(),
		City:       g.values.City(),
		State:      g.values.State(),
		Country:    g.values.Country(),
		PostalCode: g.values.PostalCode(),
	}
}

// Provider creates a payment provider named after a random catalog entry.
func (g *Generator) Provider() datagen.PaymentProvider {
	return datagen.PaymentProvider{
		ID:   g.ids.Next(datagen.KindProvider),
		Name: ProviderCatalog[g.rand.IntN(len(ProviderCatalog))],
	}
}

// Transaction creates a transaction referencing one of users and one of
// providers. Both must be non-empty.
func (g *Generator) Transaction(users, providers IDs) (datagen.Transaction, error) {
	ui, err := g.sampler.UserIndex(users.Len())
	if err != nil {
		return datagen.Transaction{}, fmt.Errorf("sample user: %w", err)
	}
	pi, err := g.sampler.ProviderIndex(providers.Len())
	if err != nil {
		return datagen.Transaction{}, fmt.Errorf("sample provider: %w", err)
	}

	userID, err := users.At(ui)
	if err != nil {
		return datagen.Transaction{}, fmt.Errorf("lookup user %d: %w", ui, err)
	}
	providerID, err := providers.At(pi)
	if err != nil {
		return datagen.Transaction{}, fmt.Errorf("lookup provider %d: %w", pi, err)
	}

	return datagen.Transaction{
		ID:         g.ids.Next(datagen.KindTransaction),
		UserID:     userID,
		ProviderID: providerID,
		Amount:     g.amount().InexactFloat64(),
		Timestamp:  g.now().UTC().Format(time.RFC3339Nano),
	}, nil
}

// amount draws a cent-precision value in the open interval between the bounds.
func (g *Generator) amount() decimal.Decimal {
	cents := MinAmountCents + 1 + g.rand.Int64N(MaxAmountCents-MinAmountCents-1)
	return decimal.New(cents, -2)
}

// EmailFor derives an address from a person's name: lowercased, whitespace
// runs become dots, anything outside [a-z0-9._-] is dropped.
func EmailFor(name, domain string) string {
	var b strings.Builder
	dot := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsSpace(r):
			if !dot && b.Len() > 0 {
				b.WriteByte('.')
				dot = true
			}
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
			dot = r == '.'
		}
	}
	local := strings.Trim(b.String(), ".")
	if local == "" {
		local = "user"
	}
	return local + "@" + domain
}
