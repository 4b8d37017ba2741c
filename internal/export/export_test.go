package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matheuskafuri/trendscope/internal/datalab"
	"github.com/matheuskafuri/trendscope/internal/engage"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

func sampleRows() []engage.Row {
	return []engage.Row{
		{Title: "에어론 리뷰, 1년 후", URL: "https://www.youtube.com/watch?v=a", PublishedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), ViewCount: 1200, LikeRatio: 0.041667, CommentRatio: 0.0025},
		{Title: "no date", URL: "https://www.youtube.com/watch?v=b", ViewCount: 100},
	}
}

func TestWriteCSVHasBOMAndRows(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleRows()); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	out := buf.Bytes()
	if !bytes.HasPrefix(out, bom) {
		t.Fatalf("expected UTF-8 BOM prefix, got % x", out[:3])
	}
	if bytes.Count(out, bom) != 1 {
		t.Error("expected exactly one BOM")
	}

	records, err := csv.NewReader(bytes.NewReader(out[len(bom):])).ReadAll()
	if err != nil {
		t.Fatalf("reading csv back: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(records))
	}
	if strings.Join(records[0], ",") != "title,url,published_at,view_count,like_ratio,comment_ratio" {
		t.Errorf("unexpected header %v", records[0])
	}
	first := records[1]
	if first[0] != "에어론 리뷰, 1년 후" || first[2] != "2025-03-01T10:00:00Z" || first[3] != "1200" || first[4] != "0.041667" {
		t.Errorf("unexpected first row %v", first)
	}
	if records[2][2] != "" || records[2][4] != "0" {
		t.Errorf("unexpected second row %v", records[2])
	}
}

func TestWriteTrendCSV(t *testing.T) {
	var buf bytes.Buffer
	points := []datalab.Point{{Period: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), Ratio: 12.5, Title: "chair"}}
	if err := WriteTrendCSV(&buf, points); err != nil {
		t.Fatalf("WriteTrendCSV: %v", err)
	}
	want := string(bom) + "period,ratio,title\n2025-01-02,12.5,chair\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestFileName(t *testing.T) {
	now := time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC)
	tests := []struct {
		keyword string
		want    string
	}{
		{"허먼밀러 에어론", "youtube_허먼밀러 에어론_20250601.csv"},
		{"a/b:c", "youtube_a_b_c_20250601.csv"},
		{"  padded ", "youtube_padded_20250601.csv"},
	}
	for _, tt := range tests {
		if got := FileName(tt.keyword, now); got != tt.want {
			t.Errorf("FileName(%q) = %q, want %q", tt.keyword, got, tt.want)
		}
	}
	if got := TrendFileName(now, ".png"); got != "datalab_20250601.png" {
		t.Errorf("TrendFileName = %q", got)
	}
}

func TestToFileCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "exports")
	path, err := ToFile(dir, "out.csv", func(w io.Writer) error {
		return WriteCSV(w, sampleRows())
	})
	if err != nil {
		t.Fatalf("ToFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	if !bytes.HasPrefix(data, bom) {
		t.Error("expected BOM in written file")
	}
}

func TestRenderTrendPNG(t *testing.T) {
	pv := datalab.NewPivot([]datalab.Point{
		{Title: "chair", Period: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Ratio: 40},
		{Title: "chair", Period: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), Ratio: 100},
		{Title: "lamp", Period: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Ratio: 10},
		{Title: "lamp", Period: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), Ratio: 20},
	})
	var buf bytes.Buffer
	if err := RenderTrendPNG(&buf, pv); err != nil {
		t.Fatalf("RenderTrendPNG: %v", err)
	}
	if _, err := png.Decode(&buf); err != nil {
		t.Errorf("output is not a PNG: %v", err)
	}
}

func TestRenderTrendPNGNeedsTwoPeriods(t *testing.T) {
	pv := datalab.NewPivot([]datalab.Point{{Title: "chair", Period: time.Now(), Ratio: 1}})
	if err := RenderTrendPNG(io.Discard, pv); !errors.Is(err, ErrNotEnoughPoints) {
		t.Errorf("expected ErrNotEnoughPoints, got %v", err)
	}
}
