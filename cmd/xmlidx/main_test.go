package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andreyvit/xmlidx"
)

const catalog = `<?xml version="1.0"?>
<catalog>
  <!-- spring list -->
  <book id="b1" lang="en"><title>Apple Pie</title><price>12.5</price></book>
  <book id="b2"><title>Banana Bread</title><price>7</price></book>
  <book id="b3"><title>apple cider</title><price>7</price></book>
</catalog>
`

// workspace writes a config pointing into a temp dir and returns its path.
func workspace(t *testing.T) (dir, config string) {
	t.Helper()
	dir = t.TempDir()
	config = filepath.Join(dir, "xmlidx.yaml")
	yaml := fmt.Sprintf(`index:
  path: %s
storage:
  pageFile: %s
  nodeIndex: %s
  pageSize: 512
logging:
  level: warn
`, filepath.Join(dir, "values.db"), filepath.Join(dir, "nodes.dom"), filepath.Join(dir, "nodes.db"))
	if err := os.WriteFile(config, []byte(yaml), 0666); err != nil {
		t.Fatal(err)
	}
	return dir, config
}

func xmlidxRun(t *testing.T, args ...string) string {
	t.Helper()
	var stdout, stderr bytes.Buffer
	if code := run(append([]string{"xmlidx"}, args...), &stdout, &stderr); code != 0 {
		t.Fatalf("xmlidx %s exited with %d: %s", strings.Join(args, " "), code, stderr.String())
	}
	return stdout.String()
}

func load(t *testing.T) string {
	t.Helper()
	dir, config := workspace(t)
	file := filepath.Join(dir, "catalog.xml")
	if err := os.WriteFile(file, []byte(catalog), 0666); err != nil {
		t.Fatal(err)
	}
	out := xmlidxRun(t, "load", "-config", config, "-doc", "3", file)
	if !strings.HasPrefix(out, "loaded document 3: ") {
		t.Fatalf("load printed %q", out)
	}
	return config
}

func TestLoadAndFind(t *testing.T) {
	config := load(t)

	out := xmlidxRun(t, "find", "-config", config, "-docs", "3", "Banana Bread")
	if lines := strings.Fields(out); len(lines) != 2 || lines[0] != "3" {
		t.Fatalf("find printed %q", out)
	}

	out = xmlidxRun(t, "find", "-config", config, "-docs", "3", "-type", "double", "-op", "<", "10")
	if n := strings.Count(out, "\n"); n != 2 {
		t.Errorf("find < 10 printed %d nodes: %q", n, out)
	}

	out = xmlidxRun(t, "find", "-config", config, "-docs", "3", "-match", "^apple", "-i")
	if n := strings.Count(out, "\n"); n != 2 {
		t.Errorf("find -match printed %d nodes: %q", n, out)
	}

	out = xmlidxRun(t, "find", "-config", config, "-docs", "3", "-wildcard", "b?")
	if n := strings.Count(out, "\n"); n != 3 {
		t.Errorf("find -wildcard printed %d nodes: %q", n, out)
	}
}

func TestLoadAndKeys(t *testing.T) {
	config := load(t)

	out := xmlidxRun(t, "keys", "-config", config, "-docs", "3", "-type", "double")
	fields := strings.Fields(out)
	if len(fields) != 6 || fields[0] != "7" || fields[1] != "2" || fields[3] != "12.5" {
		t.Errorf("keys printed %q", out)
	}

	out = xmlidxRun(t, "keys", "-config", config, "-docs", "3", "-start", "b")
	if !strings.Contains(out, "b1") || strings.Contains(out, "Apple") {
		t.Errorf("keys -start b printed %q", out)
	}
}

func TestLoadAndDump(t *testing.T) {
	config := load(t)

	out := xmlidxRun(t, "dump", "-config", config, "-doc", "3")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	// catalog, comment, 3 × (book, id, [lang], title, text, price, text)
	if len(lines) != 21 {
		t.Fatalf("dump printed %d lines:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "catalog") || !strings.Contains(lines[1], "comment") {
		t.Errorf("dump starts with %q, %q", lines[0], lines[1])
	}

	out = xmlidxRun(t, "dump", "-config", config, "-doc", "3", "-gid", "16")
	if lines := strings.Split(strings.TrimSpace(out), "\n"); len(lines) != 6 {
		t.Errorf("dump from the last book printed %d lines:\n%s", len(lines), out)
	}
}

func TestDrop(t *testing.T) {
	config := load(t)
	out := xmlidxRun(t, "drop", "-config", config, "-doc", "3")
	if out != "dropped document 3\n" {
		t.Errorf("drop printed %q", out)
	}
	if out := xmlidxRun(t, "keys", "-config", config, "-docs", "3"); out != "" {
		t.Errorf("keys after drop printed %q", out)
	}

	config = load(t)
	if out := xmlidxRun(t, "drop", "-config", config, "-collection", "1"); out != "dropped collection 1\n" {
		t.Errorf("drop printed %q", out)
	}
	if out := xmlidxRun(t, "find", "-config", config, "-docs", "3", "-match", "."); out != "" {
		t.Errorf("find after drop printed %q", out)
	}
}

func TestUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"xmlidx", "frobnicate"}, &stdout, &stderr); code != 1 {
		t.Errorf("exit code %d, wanted 1", code)
	}
	if !strings.Contains(stderr.String(), "unknown command") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestParseDocument(t *testing.T) {
	doc, err := parseDocument(strings.NewReader(catalog), 3, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.nodes) != 21 {
		t.Fatalf("parsed %d nodes, wanted 21", len(doc.nodes))
	}
	for i, n := range doc.nodes {
		if n.GID != xmlidx.NodeID(i+1) {
			t.Fatalf("node %d has gid %d", i, n.GID)
		}
	}
	if doc.nodes[0].Children != 4 {
		t.Errorf("root has %d children, wanted 4", doc.nodes[0].Children)
	}
	title := doc.nodes[5]
	if title.Name != "title" || doc.TreeLevel(title.GID) != 2 {
		t.Errorf("node 6 = %v at level %d", title, doc.TreeLevel(title.GID))
	}
	if !xmlidx.IsSelfOrDescendant(doc, 3, 7) {
		t.Errorf("title text is not below the first book")
	}

	if _, err := parseDocument(strings.NewReader("<a/><b/>"), 1, 1); err == nil {
		t.Errorf("two root elements accepted")
	}
	if _, err := parseDocument(strings.NewReader(""), 1, 1); err == nil {
		t.Errorf("empty document accepted")
	}
}

func TestParseAddress(t *testing.T) {
	a, err := parseAddress("4:2")
	if err != nil || a.Page() != 4 || a.TID() != 2 {
		t.Errorf("parseAddress(4:2) = %v, %v", a, err)
	}
	if _, err := parseAddress("42"); err == nil {
		t.Errorf("parseAddress(42) succeeded")
	}
}
