package pos

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyProduct(t *testing.T) {
	cases := []struct {
		name        string
		productType string
		category    string
		productName string
		want        ProductKind
	}{
		{"weapon by type", "arma de fogo", "", "TS9", KindWeapon},
		{"weapon by category", "", "Pistolas", "TS9", KindWeapon},
		{"weapon accent variant", "Revólver", "", "RT 889", KindWeapon},
		{"ammunition by type", "municao", "", "9mm", KindAmmunition},
		{"ammunition accented", "Munição", "", "9mm", KindAmmunition},
		{"ammunition by name", "", "", "Pólvora esportiva", KindAmmunition},
		{"primer by name", "", "", "Espoleta small pistol", KindAmmunition},
		{"free good", "acessorio", "Acessorios", "Protetor auricular", KindFree},
		{"empty everything", "", "", "", KindFree},
		// Weapon keywords outrank ammunition keywords.
		{"weapon wins over ammo name", "carabina", "", "Kit com munição", KindWeapon},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyProduct(tc.productType, tc.category, tc.productName))
		})
	}
}

func TestPaymentMethodValid(t *testing.T) {
	for _, m := range []PaymentMethod{PaymentCash, PaymentDebitCard, PaymentCreditCard, PaymentPix, PaymentBankTransfer} {
		assert.True(t, m.Valid(), string(m))
	}
	assert.False(t, PaymentMethod("CHEQUE").Valid())
	assert.False(t, PaymentMethod("").Valid())
}
