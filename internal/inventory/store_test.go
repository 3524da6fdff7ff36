package inventory

import "testing"

func TestProductAvailableForSale(t *testing.T) {
	cases := []struct {
		quantity, reserved, want int
	}{
		{10, 0, 10},
		{10, 4, 6},
		{10, 10, 0},
		{0, 0, 0},
	}
	for _, c := range cases {
		p := Product{Quantity: c.quantity, Reserved: c.reserved}
		if got := p.AvailableForSale(); got != c.want {
			t.Errorf("Product{Quantity:%d,Reserved:%d}.AvailableForSale() = %d, want %d",
				c.quantity, c.reserved, got, c.want)
		}
	}
}
