package marketplace

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		want      ID
		productID string
		isProduct bool
	}{
		{
			name:      "aliexpress item",
			url:       "https://www.aliexpress.com/item/1005006123456789.html?spm=a2g0o",
			want:      AliExpress,
			productID: "1005006123456789",
			isProduct: true,
		},
		{
			name:      "aliexpress regional i path",
			url:       "https://de.aliexpress.us/i/4000123.html",
			want:      AliExpress,
			productID: "4000123",
			isProduct: true,
		},
		{
			name:      "alibaba product detail",
			url:       "https://www.alibaba.com/product-detail/Wireless-Earbuds-Bluetooth_1600123456789.html",
			want:      Alibaba,
			productID: "1600123456789",
			isProduct: true,
		},
		{
			name:      "amazon dp",
			url:       "https://www.amazon.de/Some-Product-Name/dp/B0C1234567/ref=sr_1_1",
			want:      Amazon,
			productID: "B0C1234567",
			isProduct: true,
		},
		{
			name:      "amazon gp product",
			url:       "https://amazon.com/gp/product/B012345678",
			want:      Amazon,
			productID: "B012345678",
			isProduct: true,
		},
		{
			name:      "1688 offer",
			url:       "https://detail.1688.com/offer/623456789012.html",
			want:      Site1688,
			productID: "623456789012",
			isProduct: true,
		},
		{
			name:      "aliexpress store page is not a product",
			url:       "https://www.aliexpress.com/store/123",
			want:      AliExpress,
			isProduct: false,
		},
		{
			name:      "unknown host",
			url:       "https://shop.example.com/products/1",
			want:      Generic,
			isProduct: false,
		},
		{
			name:      "lookalike host",
			url:       "https://notamazon.com/dp/B012345678",
			want:      Generic,
			isProduct: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Detect(tt.url)
			assert.Equal(t, tt.want, m.ID)

			id, ok := m.ProductID(tt.url)
			assert.Equal(t, tt.isProduct, ok)
			assert.Equal(t, tt.productID, id)
			assert.Equal(t, tt.isProduct, IsProductURL(tt.url))
		})
	}
}

func TestShippingDefaults(t *testing.T) {
	assert.Equal(t, "15-45 days", Lookup(AliExpress).ShippingDefault)
	assert.Equal(t, "7-20 days", Lookup(Alibaba).ShippingDefault)
	assert.Equal(t, "3-7 days", Lookup(Amazon).ShippingDefault)
	assert.Equal(t, "10-30 days", Lookup(Site1688).ShippingDefault)
	assert.Equal(t, "7-30 days", Lookup("unknown").ShippingDefault)
}

func TestHeaders(t *testing.T) {
	agents := []string{"test-agent/1.0"}
	h := Lookup(AliExpress).Headers(agents)

	assert.Equal(t, "test-agent/1.0", h.Get("User-Agent"))
	assert.Equal(t, "en-US,en;q=0.9", h.Get("Accept-Language"))
	assert.Equal(t, "https://www.aliexpress.com/", h.Get("Referer"))

	generic := Lookup(Generic).Headers(nil)
	assert.Contains(t, defaultUserAgents, generic.Get("User-Agent"))
	assert.Empty(t, generic.Get("Referer"))
}

func TestMergeHeaders(t *testing.T) {
	base := http.Header{}
	base.Set("User-Agent", "base")
	base.Set("Accept", "text/html")

	override := http.Header{}
	override.Set("User-Agent", "caller")

	merged := MergeHeaders(base, override)
	assert.Equal(t, "caller", merged.Get("User-Agent"))
	assert.Equal(t, "text/html", merged.Get("Accept"))
	assert.Equal(t, "base", base.Get("User-Agent"))
}

func TestRewriteImage(t *testing.T) {
	tests := []struct {
		name string
		id   ID
		in   string
		want string
	}{
		{
			name: "amazon thumbnail",
			id:   Amazon,
			in:   "https://m.media-amazon.com/images/I/71abcDEF12L._AC_US40_.jpg",
			want: "https://m.media-amazon.com/images/I/71abcDEF12L._AC_SL1500_.jpg",
		},
		{
			name: "amazon full size untouched",
			id:   Amazon,
			in:   "https://m.media-amazon.com/images/I/71abcDEF12L.jpg",
			want: "https://m.media-amazon.com/images/I/71abcDEF12L.jpg",
		},
		{
			name: "aliexpress size suffix",
			id:   AliExpress,
			in:   "https://ae01.alicdn.com/kf/Sabc123.jpg_50x50.jpg",
			want: "https://ae01.alicdn.com/kf/Sabc123.jpg",
		},
		{
			name: "aliexpress webp suffix",
			id:   AliExpress,
			in:   "https://ae01.alicdn.com/kf/Sabc123.png_220x220q75.png_.webp",
			want: "https://ae01.alicdn.com/kf/Sabc123.png",
		},
		{
			name: "1688 dimension infix",
			id:   Site1688,
			in:   "https://cbu01.alicdn.com/img/ibank/O1CN01.220x220.jpg",
			want: "https://cbu01.alicdn.com/img/ibank/O1CN01.jpg",
		},
		{
			name: "generic untouched",
			id:   Generic,
			in:   "https://cdn.example.com/a_50x50.jpg",
			want: "https://cdn.example.com/a_50x50.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Lookup(tt.id).RewriteImage(tt.in))
		})
	}
}
