// Package values supplies the human-looking strings placed in generated
// records. The generator only sees the Provider interface, so tests can swap
// in the deterministic Stub.
package values

import (
	"math/rand"
	"strconv"

	"github.com/jaswdr/faker"
)

// Provider returns plausible, non-empty field values.
type Provider interface {
	FullName() string
	EmailDomain() string
	Phone() string
	Street() string
	City() string
	State() string
	Country() string
	PostalCode() string
}

// Faker is the production Provider backed by jaswdr/faker (en locale).
type Faker struct {
	f faker.Faker
}

// NewFaker returns a Faker whose output is reproducible for a given seed.
func NewFaker(seed int64) *Faker {
	return &Faker{f: faker.NewWithSeed(rand.NewSource(seed))}
}

func (p *Faker) FullName() string    { return p.f.Person().Name() }
func (p *Faker) EmailDomain() string { return p.f.Internet().FreeEmailDomain() }
func (p *Faker) Phone() string       { return p.f.Phone().Number() }
func (p *Faker) Street() string      { return p.f.Address().StreetName() }
func (p *Faker) City() string        { return p.f.Address().City() }
func (p *Faker) State() string       { return p.f.Address().State() }
func (p *Faker) Country() string     { return p.f.Address().Country() }
func (p *Faker) PostalCode() string  { return p.f.Address().PostCode() }

// Stub returns numbered placeholder values. Every call advances a shared
// counter so consecutive records differ.
type Stub struct {
	n int
}

func (s *Stub) next(prefix string) string {
	s.n++
	return prefix + " " + strconv.Itoa(s.n)
}

func (s *Stub) FullName() string    { return s.next("Test User") }
func (s *Stub) EmailDomain() string { return "example.com" }
func (s *Stub) Phone() string       { s.n++; return "555-" + strconv.Itoa(1000+s.n%9000) }
func (s *Stub) Street() string      { return s.next("Main Street") }
func (s *Stub) City() string        { return s.next("Springfield") }
func (s *Stub) State() string       { return "Oregon" }
func (s *Stub) Country() string     { return "United States" }
func (s *Stub) PostalCode() string  { s.n++; return strconv.Itoa(10000 + s.n%90000) }
