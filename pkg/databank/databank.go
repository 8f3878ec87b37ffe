// Package databank holds the fixed input values used while replaying
// scenarios and the temporary e-mail address that registration flows need.
package databank

import (
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"
)

// Defaults used when the config does not override them.
const (
	DefaultPassword   = "1qaz2wsX"
	DefaultLoginEmail = "uci.seal@gmail.com"
	DefaultFirstName  = "Sealbot"
	DefaultLastName   = "Labfellow"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)

// IsEmail reports whether s is a bare e-mail address.
func IsEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// Databank is safe for concurrent use.
type Databank struct {
	Password   string
	LoginEmail string
	FirstName  string
	LastName   string

	mu        sync.Mutex
	tempEmail string
	rnd       *rand.Rand
}

// New returns a databank with the default values.
func New() *Databank {
	return &Databank{
		Password:   DefaultPassword,
		LoginEmail: DefaultLoginEmail,
		FirstName:  DefaultFirstName,
		LastName:   DefaultLastName,
	}
}

// WithSeed makes temporary addresses reproducible.
func (d *Databank) WithSeed(seed uint64) *Databank {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rnd = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return d
}

// TempEmail returns the current temporary address. With renew set, or when
// none exists yet, a fresh one such as m389997se@thawlq.al.net is generated.
func (d *Databank) TempEmail(renew bool) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !renew && d.tempEmail != "" {
		return d.tempEmail
	}
	d.tempEmail = d.generate()
	return d.tempEmail
}

// CurrentTempEmail returns the last generated address without generating one.
func (d *Databank) CurrentTempEmail() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tempEmail
}

// SetTempEmail restores a previously generated address, e.g. from a checkpoint.
func (d *Databank) SetTempEmail(email string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tempEmail = email
}

// ReplaceInput returns the value to type for a recorded send_keys value.
// Addresses other than the login e-mail are swapped for the temporary
// address; confirm reuses the address of an earlier field in the same replay.
func (d *Databank) ReplaceInput(value string, confirm bool) string {
	if !IsEmail(value) || value == d.LoginEmail {
		return value
	}
	return d.TempEmail(!confirm)
}

func (d *Databank) generate() string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	const digits = "0123456789"
	var b strings.Builder
	b.WriteByte(letters[d.intn(len(letters))])
	for i := 0; i < 6; i++ {
		b.WriteByte(digits[d.intn(len(digits))])
	}
	b.WriteString("se@")
	for i := 0; i < 6; i++ {
		b.WriteByte(letters[d.intn(len(letters))])
	}
	b.WriteString(".al.net")
	return b.String()
}

func (d *Databank) intn(n int) int {
	if d.rnd != nil {
		return d.rnd.IntN(n)
	}
	return rand.IntN(n)
}
