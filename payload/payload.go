// Package payload defines the synthetic per-element work applied to every
// value loaded from the backing array. Payloads span a cost spectrum from
// identity (memory bound) to 128 chained rounds of a small integer hash.
package payload

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrUnknownPayload is returned when a payload name cannot be resolved.
var ErrUnknownPayload = errors.New("unknown payload")

// Func transforms one loaded element. Implementations must be pure and must
// not touch memory beyond their argument.
type Func func(x int32) int32

// Payload is a named Func.
type Payload struct {
	Name string
	Fn   Func
}

const (
	fnvOffset = 0x811C9DC5
	fnvPrime  = 0x01000193
)

// Identity returns x unchanged.
func Identity(x int32) int32 { return x }

// Math is a floating point heavy composite of cos, sin and log. The
// logarithm is undefined for x <= 0 and the conversion of the resulting NaN
// or infinity back to int32 is platform dependent; that is accepted.
func Math(x int32) int32 {
	fx := float64(x)
	a := int32(float64(int32(math.Cos(fx))) + math.Sin(fx))

	return int32(float64(a) / (1 + math.Log(fx)))
}

// P1 is four rounds of FNV-1a over the little-endian bytes of x.
func P1(x int32) int32 {
	u := uint32(x)
	h := uint32(fnvOffset)
	h = (u&0xff ^ h) * fnvPrime
	h = (u>>8&0xff ^ h) * fnvPrime
	h = (u>>16&0xff ^ h) * fnvPrime

	return int32((u>>24 ^ h) * fnvPrime)
}

// Repeat returns a Func applying P1 n times.
func Repeat(n int) Func {
	return func(x int32) int32 {
		for i := 0; i < n; i++ {
			x = P1(x)
		}

		return x
	}
}

// Default returns the payload set of a full run, cheapest first.
func Default() []Payload {
	payloads := []Payload{
		{Name: "identity", Fn: Identity},
		{Name: "math", Fn: Math},
		{Name: "p1", Fn: P1},
	}

	for n := 2; n <= 32; n += 2 {
		payloads = append(payloads, Payload{
			Name: "p" + strconv.Itoa(n),
			Fn:   Repeat(n),
		})
	}

	payloads = append(payloads,
		Payload{Name: "p64", Fn: Repeat(64)},
		Payload{Name: "p128", Fn: Repeat(128)},
	)

	return payloads
}

// Lookup resolves identity, math, or pN for any N >= 1.
func Lookup(name string) (Payload, error) {
	switch name {
	case "identity":
		return Payload{Name: name, Fn: Identity}, nil
	case "math":
		return Payload{Name: name, Fn: Math}, nil
	case "p1":
		return Payload{Name: name, Fn: P1}, nil
	}

	if rest, ok := strings.CutPrefix(name, "p"); ok {
		n, err := strconv.Atoi(rest)
		if err == nil && n >= 1 {
			return Payload{Name: name, Fn: Repeat(n)}, nil
		}
	}

	return Payload{}, fmt.Errorf("%w %q", ErrUnknownPayload, name)
}

// Select resolves names in order. An empty list selects Default().
func Select(names []string) ([]Payload, error) {
	if len(names) == 0 {
		return Default(), nil
	}

	payloads := make([]Payload, 0, len(names))

	for _, name := range names {
		p, err := Lookup(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}

		payloads = append(payloads, p)
	}

	return payloads, nil
}
