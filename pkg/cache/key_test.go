package cache

import "testing"

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "kind only",
			key:  Key{Kind: "category-tree"},
			want: "storesync:category-tree",
		},
		{
			name: "store and kind",
			key:  Key{Store: "shop.example.com", Kind: "category-tree"},
			want: "storesync:shop.example.com:category-tree",
		},
		{
			name: "params sorted",
			key: Key{
				Store:  "s1",
				Kind:   "attribute-options",
				Params: map[string]string{"scope": "default", "attribute": "manufacturer"},
			},
			want: "storesync:s1:attribute-options:attribute=manufacturer:scope=default",
		},
		{
			name: "surrounding colons trimmed",
			key:  Key{Store: " s1 ", Kind: ":tree:"},
			want: "storesync:s1:tree",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKey_Deterministic(t *testing.T) {
	key := Key{Store: "s", Kind: "k", Params: map[string]string{"c": "3", "a": "1", "b": "2"}}
	first := key.String()
	for i := 0; i < 20; i++ {
		if got := key.String(); got != first {
			t.Fatalf("String() not deterministic: %q vs %q", got, first)
		}
	}
}
