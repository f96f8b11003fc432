package evm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func validAuthorization() Authorization {
	return Authorization{
		From:        "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		To:          "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		Value:       "1000000",
		ValidAfter:  "0",
		ValidBefore: "9999999999",
		Nonce:       "0x" + strings.Repeat("ab", 32),
	}
}

func TestAuthorizationParse(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		p, err := validAuthorization().Parse()
		require.NoError(t, err)
		require.Equal(t, "1000000", p.Value.String())
		require.Equal(t, int64(0), p.ValidAfter.Int64())
	})

	t.Run("zero value is allowed", func(t *testing.T) {
		a := validAuthorization()
		a.Value = "0"
		_, err := a.Parse()
		require.NoError(t, err)
	})

	t.Run("self transfer is allowed", func(t *testing.T) {
		a := validAuthorization()
		a.To = a.From
		_, err := a.Parse()
		require.NoError(t, err)
	})

	mutations := map[string]func(*Authorization){
		"missing from":         func(a *Authorization) { a.From = "" },
		"missing to":           func(a *Authorization) { a.To = "" },
		"missing value":        func(a *Authorization) { a.Value = "" },
		"missing validAfter":   func(a *Authorization) { a.ValidAfter = "" },
		"missing validBefore":  func(a *Authorization) { a.ValidBefore = "" },
		"missing nonce":        func(a *Authorization) { a.Nonce = "" },
		"bad from address":     func(a *Authorization) { a.From = "not-an-address" },
		"bad to address":       func(a *Authorization) { a.To = "0x123" },
		"negative value":       func(a *Authorization) { a.Value = "-1" },
		"non-numeric value":    func(a *Authorization) { a.Value = "1.5" },
		"short nonce":          func(a *Authorization) { a.Nonce = "0xabcd" },
		"non-hex nonce":        func(a *Authorization) { a.Nonce = "0x" + strings.Repeat("zz", 32) },
		"negative validAfter":  func(a *Authorization) { a.ValidAfter = "-5" },
		"negative validBefore": func(a *Authorization) { a.ValidBefore = "-5" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			a := validAuthorization()
			mutate(&a)
			_, err := a.Parse()
			require.Error(t, err)
		})
	}
}

func TestParseSignature(t *testing.T) {
	t.Run("valid 65 bytes", func(t *testing.T) {
		sig, err := ParseSignature("0x" + strings.Repeat("11", 65))
		require.NoError(t, err)
		require.Len(t, sig, 65)
	})

	t.Run("without 0x prefix", func(t *testing.T) {
		_, err := ParseSignature(strings.Repeat("11", 65))
		require.NoError(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ParseSignature("")
		require.Error(t, err)
	})

	t.Run("wrong length", func(t *testing.T) {
		_, err := ParseSignature("0x" + strings.Repeat("11", 64))
		require.Error(t, err)
	})

	t.Run("non-hex", func(t *testing.T) {
		_, err := ParseSignature("0x" + strings.Repeat("zz", 65))
		require.Error(t, err)
	})
}
