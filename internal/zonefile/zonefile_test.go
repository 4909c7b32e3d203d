package zonefile

import (
	"strings"
	"testing"

	"github.com/ikus060/udb/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(name, rtype, value string) model.DnsRecord {
	r := model.DnsRecord{Name: name, Type: rtype, TTL: 3600, Value: value}
	r.Status = model.StatusEnabled
	r.EStatus = model.StatusEnabled
	return r
}

func TestSort_SoaFirst(t *testing.T) {
	records := []model.DnsRecord{
		record("www.example.com", "A", "192.168.1.10"),
		record("example.com", "NS", "ns1.example.com"),
		record("example.com", "SOA", "ns1.example.com admin.example.com 1 3600 900 604800 3600"),
	}
	Sort(records)
	assert.Equal(t, "SOA", records[0].Type)
}

func TestSort_GroupsByReversedName(t *testing.T) {
	records := []model.DnsRecord{
		record("b.example.com", "A", "192.168.1.2"),
		record("a.sub.example.com", "A", "192.168.1.3"),
		record("a.example.com", "A", "192.168.1.1"),
		record("example.com", "MX", "mail.example.com"),
	}
	Sort(records)
	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.Name)
	}
	// The apex first, then siblings grouped under their parent label.
	assert.Equal(t, []string{
		"example.com",
		"a.example.com",
		"b.example.com",
		"a.sub.example.com",
	}, names)
}

func TestSort_WildcardLast(t *testing.T) {
	records := []model.DnsRecord{
		record("*.example.com", "A", "192.168.1.99"),
		record("zzz.example.com", "A", "192.168.1.2"),
		record("aaa.example.com", "A", "192.168.1.1"),
	}
	Sort(records)
	assert.Equal(t, "aaa.example.com", records[0].Name)
	assert.Equal(t, "zzz.example.com", records[1].Name)
	assert.Equal(t, "*.example.com", records[2].Name)
}

func TestSort_TypeThenValue(t *testing.T) {
	records := []model.DnsRecord{
		record("www.example.com", "TXT", "b"),
		record("www.example.com", "TXT", "a"),
		record("www.example.com", "A", "192.168.1.1"),
	}
	Sort(records)
	assert.Equal(t, "A", records[0].Type)
	assert.Equal(t, "a", records[1].Value)
	assert.Equal(t, "b", records[2].Value)
}

func TestSort_PtrGroupsWithItsHost(t *testing.T) {
	records := []model.DnsRecord{
		record("*.example.com", "CNAME", "bar.example.com"),
		record("_acme-challenge.example.com", "CNAME", "foo.example.com"),
		record("23.2.0.192.in-addr.arpa", "PTR", "example.com"),
		record("example.com", "A", "192.0.2.23"),
	}
	Sort(records)
	// The PTR sorts by its value, so the reverse entry sits right next to
	// the forward record of the same host.
	assert.Equal(t, "A", records[0].Type)
	assert.Equal(t, "PTR", records[1].Type)
	assert.Equal(t, "_acme-challenge.example.com", records[2].Name)
	assert.Equal(t, "*.example.com", records[3].Name)
}

func TestInZone(t *testing.T) {
	a := record("www.example.com", "A", "192.0.2.23")
	ptr := record("23.2.0.192.in-addr.arpa", "PTR", "www.example.com")
	txt := record("www.example.net", "TXT", "hello")

	assert.True(t, InZone(&a, "example.com"))
	assert.True(t, InZone(&ptr, "example.com"))
	assert.False(t, InZone(&ptr, "example.net"))
	assert.False(t, InZone(&txt, "example.com"))
	// No partial label match.
	assert.False(t, InZone(&a, "ample.com"))
}

func TestRender(t *testing.T) {
	records := []model.DnsRecord{
		record("example.com", "A", "192.0.2.23"),
		record("23.2.0.192.in-addr.arpa", "PTR", "example.com"),
		record("_acme-challenge.example.com", "CNAME", "foo.example.com"),
		record("*.example.com", "CNAME", "bar.example.com"),
	}
	Sort(records)
	out := Render(records)

	assert.Equal(t, Header+"\n"+
		"example.com. 3600 IN A 192.0.2.23\n"+
		"23.2.0.192.in-addr.arpa. 3600 IN PTR example.com\n"+
		"_acme-challenge.example.com. 3600 IN CNAME foo.example.com.\n"+
		"*.example.com. 3600 IN CNAME bar.example.com.\n", out)
}

func TestRender_ValueFormats(t *testing.T) {
	records := []model.DnsRecord{
		record("example.com", "NS", "ns1.example.com"),
		record("www.example.com", "TXT", "hello world"),
	}
	out := Render(records)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, Header, lines[0])

	// Hostname values get the trailing dot, TXT values are quoted.
	assert.Contains(t, out, "example.com. 3600 IN NS ns1.example.com.\n")
	assert.Contains(t, out, "www.example.com. 3600 IN TXT \"hello world\"\n")
}
