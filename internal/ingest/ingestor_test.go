package ingest

import (
	"testing"

	types "github.com/yungbote/guildmind-backend/internal/domain"
	"github.com/yungbote/guildmind-backend/internal/gateway"
)

func TestClassifySourceType(t *testing.T) {
	cases := []struct {
		name string
		meta gateway.FileMeta
		want string
	}{
		{"markdown by ext", gateway.FileMeta{FileName: "NOTES.MD"}, types.SourceTypeMarkdown},
		{"markdown long ext", gateway.FileMeta{FileName: "readme.markdown"}, types.SourceTypeMarkdown},
		{"pdf by ext", gateway.FileMeta{FileName: "spec.pdf"}, types.SourceTypePDF},
		{"pdf by mime", gateway.FileMeta{FileName: "download", MimeType: "application/pdf"}, types.SourceTypePDF},
		{"image by mime", gateway.FileMeta{FileName: "photo.jpg", MimeType: "image/jpeg"}, types.SourceTypeImage},
		{"fallback text", gateway.FileMeta{FileName: "log.txt", MimeType: "text/plain"}, types.SourceTypeText},
		{"unknown fallback", gateway.FileMeta{FileName: "data.bin"}, types.SourceTypeText},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := classifySourceType(c.meta); got != c.want {
				t.Fatalf("got %s want %s", got, c.want)
			}
		})
	}
}
