package storage

import (
	"net/url"
	"testing"
)

func TestObjectURL(t *testing.T) {
	endpoint := &url.URL{Scheme: "https", Host: "minio.internal:9000"}
	got := ObjectURL(endpoint, "reports", "acme/123/report.md")
	if got != "https://minio.internal:9000/reports/acme/123/report.md" {
		t.Fatalf("unexpected url %q", got)
	}
}
