package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestLintSource(t *testing.T) {
	src := []byte("package q\n\n" +
		"const QGood = `--sql 3f0c8a52-9d1e-4b7a-a6c2-5e8f1b2d7c90\nselect 1`\n" +
		"const QMissing = `select * from outfit_history`\n" +
		"const QDup = `--sql 3f0c8a52-9d1e-4b7a-a6c2-5e8f1b2d7c90\ndelete from outfit_history`\n" +
		"const QSchema = \"create table x (id int)\"\n" +
		"const Label = \"outfit history\"\n")

	vs, err := lintSource("q.go", src, map[string]string{})
	if err != nil {
		t.Fatalf("lintSource: %v", err)
	}
	if len(vs) != 3 {
		t.Fatalf("expected 3 violations, got %+v", vs)
	}
	if vs[0].name != "QMissing" || vs[1].name != "QDup" || vs[2].name != "QSchema" {
		t.Fatalf("unexpected violations %+v", vs)
	}
	if !strings.Contains(vs[1].message, "QGood") {
		t.Fatalf("duplicate should name the first user, got %q", vs[1].message)
	}
}

func TestRunOnInlineQueries(t *testing.T) {
	var stderr bytes.Buffer
	if code := run([]string{"../../sqlinline"}, &stderr); code != 0 {
		t.Fatalf("inline queries should lint clean, code=%d:\n%s", code, stderr.String())
	}
}
