package sales

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email string
		want  error
	}{
		{"user@example.com", nil},
		{"  first.last@mail.example.com.br ", nil},
		{"a_b-c@sub-domain.io", nil},
		{"", ErrEmailRequired},
		{"   ", ErrEmailRequired},
		{"a@b", ErrEmailTooShort},
		{strings.Repeat("a", 95) + "@x.com", ErrEmailTooLong},
		{"user@@example.com", ErrEmailFormat},
		{"user@example", ErrEmailFormat},
		{".user@example.com", ErrEmailFormat},
		{"user@example.c", ErrEmailFormat},
		{strings.Repeat("a", 65) + "@x.com", ErrEmailLocal},
		{"u@" + strings.Repeat("d", 60) + ".com", ErrEmailDomain},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "R$ 9,90", FormatPrice(9.9))
	assert.Equal(t, "R$ 15,00", FormatPrice(15))
	assert.Equal(t, "R$ 1.234,56", FormatPrice(1234.56))
	assert.Equal(t, "R$ 0,00", FormatPrice(0))
}

func TestTimeUntilExpiration(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	r := TimeUntilExpiration("2026-10-19T12:14:30Z", now)
	assert.Equal(t, Remaining{Minutes: 14, Seconds: 30}, r)
	assert.Equal(t, "14:30", r.String())

	r = TimeUntilExpiration("2026-10-19T11:59:59Z", now)
	assert.True(t, r.Expired)
	assert.Equal(t, "expired", r.String())

	assert.True(t, TimeUntilExpiration("2026-10-19T12:00:00Z", now).Expired)
	assert.True(t, TimeUntilExpiration("not a date", now).Expired)
}
