package message

import (
	"encoding/json"
	"reflect"
	"testing"
)

func decode(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	return data
}

const patientFixture = `{
	"resourceType": "Patient",
	"gender": "male",
	"birthDate": "2004-10-06",
	"name": [{"family": "Smith", "given": ["John", "Q"]}],
	"address": [{"line": ["1 Main St"], "city": "Springfield"}]
}`

func TestExtractFHIRPaths(t *testing.T) {
	paths := ExtractFHIRPaths(decode(t, patientFixture))

	want := []string{
		"address[0].city",
		"address[0].line[0]",
		"birthDate",
		"gender",
		"name[0].family",
		"name[0].given",
	}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("paths = %v, want %v", paths, want)
	}
}

func TestExtractFHIRPathsSkipsResourceType(t *testing.T) {
	for _, p := range ExtractFHIRPaths(decode(t, patientFixture)) {
		if p == "resourceType" {
			t.Error("resourceType must not be extracted as a field path")
		}
	}
}

func TestExtractFHIRPathsStringListIsOpaque(t *testing.T) {
	paths := ExtractFHIRPaths(decode(t, `{"given": ["John", "Q"]}`))
	want := []string{"given"}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("paths = %v, want %v", paths, want)
	}

	// A single-element string list still gets an indexed path.
	paths = ExtractFHIRPaths(decode(t, `{"line": ["1 Main St"]}`))
	want = []string{"line[0]"}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("paths = %v, want %v", paths, want)
	}
}

func TestResolveFHIRPath(t *testing.T) {
	data := decode(t, patientFixture)

	tests := []struct {
		path string
		want interface{}
		ok   bool
	}{
		{"gender", "male", true},
		{"name[0].family", "Smith", true},
		{"name[0].given", []interface{}{"John", "Q"}, true},
		{"address[0].line[0]", "1 Main St", true},
		{"name[2].family", nil, false},
		{"name[0].suffix", nil, false},
		{"gender.code", nil, false},
	}
	for _, tt := range tests {
		got, ok := ResolveFHIRPath(data, tt.path)
		if ok != tt.ok {
			t.Errorf("ResolveFHIRPath(%q) ok = %v, want %v", tt.path, ok, tt.ok)
			continue
		}
		if ok && !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ResolveFHIRPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestResolveFHIRPathNullIsMiss(t *testing.T) {
	data := decode(t, `{"deceasedDateTime": null}`)
	if _, ok := ResolveFHIRPath(data, "deceasedDateTime"); ok {
		t.Error("JSON null should resolve as a miss")
	}
}

func TestBuildFHIRGrouped(t *testing.T) {
	output := map[string]interface{}{
		"gender":         "M",
		"name[0].family": "Smith",
		"status":         "final",
	}
	resourceByPath := map[string]string{
		"gender":         "Patient",
		"name[0].family": "Patient",
		"status":         "Observation",
	}

	got := BuildFHIRGrouped(output, resourceByPath)
	want := map[string]map[string]interface{}{
		"Patient":     {"gender": "M", "name[0].family": "Smith"},
		"Observation": {"status": "final"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuildFHIRGrouped = %v, want %v", got, want)
	}
}

func TestBuildFHIRGroupedDropsUncataloguedPaths(t *testing.T) {
	got := BuildFHIRGrouped(map[string]interface{}{"gender": "M"}, map[string]string{})
	if len(got) != 0 {
		t.Errorf("expected empty result for uncatalogued path, got %v", got)
	}
}
