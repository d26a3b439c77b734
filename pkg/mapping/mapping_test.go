package mapping

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	input := `gtm_public_id,ga4_property_id,notes
GTM-AAAA111,123456,main site
GTM-BBBB222,234567,
`
	entries, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []Entry{
		{ContainerPublicID: "GTM-AAAA111", PropertyID: "123456"},
		{ContainerPublicID: "GTM-BBBB222", PropertyID: "234567"},
	}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, entries[i], want[i])
		}
	}
}

func TestParseColumnOrderIrrelevant(t *testing.T) {
	input := `ga4_property_id,owner,gtm_public_id
123456,web-team,GTM-AAAA111
`
	entries, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if entries[0].ContainerPublicID != "GTM-AAAA111" || entries[0].PropertyID != "123456" {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestParseSkipsIncompleteRows(t *testing.T) {
	input := `gtm_public_id,ga4_property_id
GTM-AAAA111,123456
,234567
GTM-CCCC333,
 GTM-DDDD444 , 345678
`
	entries, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(entries), entries)
	}
	if entries[1].ContainerPublicID != "GTM-DDDD444" {
		t.Errorf("whitespace not trimmed: %+v", entries[1])
	}
}

func TestParseMissingColumns(t *testing.T) {
	if _, err := Parse(strings.NewReader("container,property\nGTM-A,1\n")); err == nil {
		t.Error("Parse must reject a header without the required columns")
	}
}

func TestParseNoEntries(t *testing.T) {
	_, err := Parse(strings.NewReader("gtm_public_id,ga4_property_id\n"))
	if !errors.Is(err, ErrNoEntries) {
		t.Errorf("err = %v, want ErrNoEntries", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.csv")
	content := "gtm_public_id,ga4_property_id\nGTM-AAAA111,123456\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	entries, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("got %d entries", len(entries))
	}

	if _, err := Load(filepath.Join(t.TempDir(), "absent.csv")); err == nil {
		t.Error("Load of a missing file must fail")
	}
}
