package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValid(t *testing.T) {
	tbl := []struct {
		in    string
		valid bool
	}{
		{"0", true},
		{"10", true},
		{"10.5", true},
		{"10.50", true},
		{"9999999.99", true},
		{"abc", false},
		{"10.005", false},
		{"-1", false},
		{"1e3", false},
		{".50", false},
		{"10.", false},
		{"", false},
		{" 10", false},
	}

	for _, c := range tbl {
		t.Run(c.in, func(t *testing.T) {
			assert.Equal(t, c.valid, Valid(c.in))
		})
	}
}

func TestParse(t *testing.T) {
	a, err := Parse("10.5")
	require.NoError(t, err)
	assert.Equal(t, "10.50", a.String())
	assert.Equal(t, int64(1050), a.Cents())

	_, err = Parse("10.005")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestAdd_Exact(t *testing.T) {
	total := Zero
	for range 10 {
		total = total.Add(MustParse("0.10"))
	}

	assert.Equal(t, "1.00", total.String())
	assert.Equal(t, "10.50", MustParse("10.00").Add(MustParse("0.50")).String())
	assert.Equal(t, "0.00", Zero.String())
}

func TestFromCents(t *testing.T) {
	assert.Equal(t, "0.07", FromCents(7).String())
	assert.Equal(t, "123456789.01", FromCents(12345678901).String())
	assert.Equal(t, MustParse("10.5").String(), FromCents(1050).String())
}

func TestJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Amount Amount `json:"amount"`
	}{MustParse("3")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"3.00"}`, string(b))

	var a Amount
	require.NoError(t, json.Unmarshal([]byte(`"4.2"`), &a))
	assert.Equal(t, "4.20", a.String())

	assert.Error(t, json.Unmarshal([]byte(`4.2`), &a))
}

func TestScan(t *testing.T) {
	tbl := []struct {
		src  any
		want string
	}{
		{[]byte("10.50"), "10.50"},
		{"12345678901.25", "12345678901.25"},
		{int64(0), "0.00"},
		{nil, "0.00"},
	}

	for _, c := range tbl {
		var a Amount
		require.NoError(t, a.Scan(c.src))
		assert.Equal(t, c.want, a.String())
	}

	var a Amount
	assert.Error(t, a.Scan(3.14))
	assert.Error(t, a.Scan("oops"))
}
