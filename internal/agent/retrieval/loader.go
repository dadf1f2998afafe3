package retrieval

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/teamfit/server/internal/agent/graph/parsers"
	logx "github.com/teamfit/server/pkg/logger"
)

// MetaName keys the employee name on directory documents.
const MetaName = "name"

var (
	blankLines  = regexp.MustCompile(`\n\s*\n`)
	headingLine = regexp.MustCompile(`^(#{1,6}\s+|\d+\.(\d+\.?)*\s+|[ⅠⅡⅢⅣⅤⅥⅦⅧⅨⅩ]+\.\s+)`)
)

// LoadCodeRules reads the coding-convention corpus. Rules are separated by
// blank lines.
func LoadCodeRules(path string) ([]*schema.Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read code rules: %w", err)
	}
	var docs []*schema.Document
	for _, rule := range blankLines.Split(normalizeNewlines(string(b)), -1) {
		rule = strings.TrimSpace(rule)
		if rule == "" {
			continue
		}
		docs = append(docs, &schema.Document{
			ID:      fmt.Sprintf("rule-%d", len(docs)),
			Content: rule,
			MetaData: map[string]any{
				MetaSource:  path,
				MetaSection: "coding_rules",
			},
		})
	}
	return docs, nil
}

// LoadEmployees reads "name,email,department,position,duties" lines and
// renders each as a five-field record.
func LoadEmployees(path string) ([]*schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open employees: %w", err)
	}
	defer f.Close()

	var docs []*schema.Document
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rec, ok := parsers.ParseEmployeeLine(line)
		if !ok {
			logx.Warn().Str("path", path).Int("line", lineNo).Msg("skipping malformed employee line")
			continue
		}
		docs = append(docs, &schema.Document{
			ID:      fmt.Sprintf("employee-%d", len(docs)),
			Content: rec.Format(),
			MetaData: map[string]any{
				MetaSource:  path,
				MetaSection: rec.Department,
				MetaName:    rec.Name,
			},
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan employees: %w", err)
	}
	return docs, nil
}

// LoadReports walks dir for text reports, splits each into heading sections
// and chunks every section.
func LoadReports(dir string, chunkSize, overlap int) ([]*schema.Document, error) {
	var docs []*schema.Document
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(p)) {
		case ".txt", ".md":
		default:
			return nil
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		source := filepath.ToSlash(p)
		for _, sec := range splitSections(normalizeNewlines(string(b))) {
			for j, chunk := range SplitText(sec.body, chunkSize, overlap) {
				docs = append(docs, &schema.Document{
					ID:      fmt.Sprintf("%s#%d", source, len(docs)),
					Content: chunk,
					MetaData: map[string]any{
						MetaSource:    source,
						MetaSection:   sec.heading,
						"chunk_index": j,
					},
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load reports: %w", err)
	}
	return docs, nil
}

type section struct {
	heading string
	body    string
}

// splitSections cuts text at heading lines. Text before the first heading
// gets an empty heading and is labelled unclassified downstream.
func splitSections(text string) []section {
	var out []section
	cur := section{}
	var body strings.Builder
	flush := func() {
		cur.body = strings.TrimSpace(body.String())
		if cur.body != "" {
			out = append(out, cur)
		}
		body.Reset()
	}
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && len([]rune(trimmed)) <= 80 && headingLine.MatchString(trimmed) {
			flush()
			cur = section{heading: strings.TrimSpace(strings.TrimLeft(trimmed, "# "))}
			body.WriteString(trimmed)
			body.WriteString("\n")
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()
	return out
}

// SplitText packs paragraphs into chunks of at most size runes. Each chunk
// after the first starts with the last overlap runes of the previous one.
// Paragraphs longer than size are cut into fixed windows.
func SplitText(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var pieces []string
	for _, para := range blankLines.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		r := []rune(para)
		if len(r) <= size {
			pieces = append(pieces, para)
			continue
		}
		step := size - overlap
		for start := 0; start < len(r); start += step {
			end := min(start+size, len(r))
			pieces = append(pieces, string(r[start:end]))
			if end == len(r) {
				break
			}
		}
	}

	var chunks []string
	var cur []rune
	for _, p := range pieces {
		pr := []rune(p)
		if len(cur) == 0 {
			cur = pr
			continue
		}
		if len(cur)+2+len(pr) <= size {
			cur = append(cur, []rune("\n\n")...)
			cur = append(cur, pr...)
			continue
		}
		chunks = append(chunks, string(cur))
		tail := tailRunes(cur, overlap)
		if len(tail) > 0 && len(tail)+1+len(pr) <= size {
			cur = append(append(tail, '\n'), pr...)
		} else {
			cur = pr
		}
	}
	if len(cur) > 0 {
		chunks = append(chunks, string(cur))
	}
	return chunks
}

func tailRunes(r []rune, n int) []rune {
	if n <= 0 {
		return nil
	}
	if n > len(r) {
		n = len(r)
	}
	out := make([]rune, n)
	copy(out, r[len(r)-n:])
	return out
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
