package money

import (
	"bytes"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale é o número de casas decimais de todo valor monetário
const Scale = 2

var ErrMalformed = errors.New("malformed monetary value")

// Amount é um valor monetário em ponto fixo (nunca float)
// Serializa sempre com duas casas decimais, ex: "25.00"
type Amount struct {
	d decimal.Decimal
}

var Zero = Amount{}

// Max é o maior valor que cabe nas colunas NUMERIC(14, 2)
var Max = Amount{d: decimal.New(99999999999999, -Scale)}

var ErrOutOfRange = errors.New("monetary value out of range")

// Parse converte uma string decimal em Amount
// Rejeita valores com mais de duas casas decimais em vez de arredondar silenciosamente
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	if d.Exponent() < -Scale && !d.Equal(d.Round(Scale)) {
		return Amount{}, fmt.Errorf("%w: %q has more than %d decimal places", ErrMalformed, s, Scale)
	}
	a := Amount{d: d.Round(Scale)}
	if !a.InRange() {
		return Amount{}, fmt.Errorf("%w: %q exceeds %s", ErrOutOfRange, s, Max)
	}
	return a, nil
}

// InRange indica se |a| <= Max
func (a Amount) InRange() bool { return a.d.Abs().LessThanOrEqual(Max.d) }

// MustParse é usado em testes e constantes
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromDecimal arredonda d para a escala monetária (meio para longe do zero)
func FromDecimal(d decimal.Decimal) Amount { return Amount{d: d.Round(Scale)} }

func FromCents(c int64) Amount { return Amount{d: decimal.New(c, -Scale)} }

func (a Amount) Decimal() decimal.Decimal { return a.d }

func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d)} }
func (a Amount) Sub(b Amount) Amount { return Amount{d: a.d.Sub(b.d)} }
func (a Amount) Neg() Amount         { return Amount{d: a.d.Neg()} }

// MulRound multiplica por um fator arbitrário e arredonda para duas casas
func (a Amount) MulRound(f decimal.Decimal) Amount { return FromDecimal(a.d.Mul(f)) }

// MulInt multiplica por inteiro, exato
func (a Amount) MulInt(n int64) Amount { return Amount{d: a.d.Mul(decimal.NewFromInt(n))} }

// DivRound divide por inteiro e arredonda; divisão por zero devolve Zero
func (a Amount) DivRound(n int64) Amount {
	if n == 0 {
		return Zero
	}
	return FromDecimal(a.d.Div(decimal.NewFromInt(n)))
}

func (a Amount) Cmp(b Amount) int             { return a.d.Cmp(b.d) }
func (a Amount) Equal(b Amount) bool          { return a.d.Equal(b.d) }
func (a Amount) LessThan(b Amount) bool       { return a.d.LessThan(b.d) }
func (a Amount) GreaterThan(b Amount) bool    { return a.d.GreaterThan(b.d) }
func (a Amount) IsPositive() bool             { return a.d.IsPositive() }
func (a Amount) IsNegative() bool             { return a.d.IsNegative() }
func (a Amount) IsZero() bool                 { return a.d.IsZero() }
func (a Amount) String() string               { return a.d.StringFixed(Scale) }
func (a Amount) GoString() string             { return "money.MustParse(\"" + a.String() + "\")" }
func (a Amount) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// MarshalJSON grava como string para não passar por float no cliente
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON aceita "25.00" ou 25.00; o número é lido como texto, sem float
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = Zero
		return nil
	}
	v, err := Parse(string(bytes.Trim(b, `"`)))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

func (a *Amount) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Scan lê colunas NUMERIC do Postgres
func (a *Amount) Scan(src any) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return err
	}
	a.d = d.Round(Scale)
	return nil
}

// Value grava como texto decimal exato
func (a Amount) Value() (driver.Value, error) { return a.String(), nil }

// Sum soma uma lista de valores
func Sum(vs ...Amount) Amount {
	out := Zero
	for _, v := range vs {
		out = out.Add(v)
	}
	return out
}
