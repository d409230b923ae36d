package branch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"receipts-bot/internal/domain/user"
)

func TestBranch_LocalizedFields(t *testing.T) {
	b := Branch{NameUz: "Markaz", NameQq: "Oray", AddressUz: "Toshkent 1", AddressQq: "Nókis 1"}

	assert.Equal(t, "Markaz", b.Name(user.LocaleUzbek))
	assert.Equal(t, "Oray", b.Name(user.LocaleKarakalpak))
	assert.Equal(t, "Markaz", b.Name(""))
	assert.Equal(t, "Nókis 1", b.Address(user.LocaleKarakalpak))

	b.NameQq = ""
	assert.Equal(t, "Markaz", b.Name(user.LocaleKarakalpak))
}
