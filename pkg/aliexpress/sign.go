package aliexpress

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Sign computes the open platform md5 signature:
// upper(hex(md5(secret + k1v1k2v2... + secret))) over keys in byte order.
// The sign key itself is excluded.
func Sign(values url.Values, secret string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k == "sign" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(secret)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(values.Get(k))
	}
	b.WriteString(secret)

	hash := md5.Sum([]byte(b.String()))
	return strings.ToUpper(hex.EncodeToString(hash[:]))
}
