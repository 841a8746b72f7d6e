package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"updater/pkg/fspath"
)

func TestExtract(t *testing.T) {
	tempDir := fspath.Begin(t.TempDir())

	fileName := "test.txt"
	fileContent := "hello world"
	dirName := "subdir"
	subFileName := "sub.txt"
	subFileContent := "hello sub"

	createContent := func(w func(name string, content []byte) error) error {
		if err := w(fileName, []byte(fileContent)); err != nil {
			return err
		}
		return w(dirName+"/"+subFileName, []byte(subFileContent))
	}

	// 1. Zip
	zipPath := tempDir.To("test.zip")
	createZip(t, zipPath, createContent)
	testExtraction(t, zipPath, fileContent, subFileContent)

	// 2. Jar is a zip
	jarPath := tempDir.To("test.jar")
	createZip(t, jarPath, createContent)
	testExtraction(t, jarPath, fileContent, subFileContent)

	// 3. Tar.gz
	tgzPath := tempDir.To("test.tar.gz")
	createTar(t, tgzPath, func(w io.Writer) io.WriteCloser {
		return gzip.NewWriter(w)
	}, createContent)
	testExtraction(t, tgzPath, fileContent, subFileContent)

	// 4. Tar.zst
	zstPath := tempDir.To("test.tar.zst")
	createTar(t, zstPath, func(w io.Writer) io.WriteCloser {
		e, _ := zstd.NewWriter(w)
		return e
	}, createContent)
	testExtraction(t, zstPath, fileContent, subFileContent)
}

func TestExtractIgnoresOtherExtensions(t *testing.T) {
	tempDir := fspath.Begin(t.TempDir())
	tarPath := tempDir.To("plain.tar")
	createTar(t, tarPath, nil, func(w func(string, []byte) error) error {
		return w("a.txt", []byte("a"))
	})

	stats, err := Extract(tarPath, tempDir.To("out"), nil)
	if err != nil {
		t.Fatalf("Expected no error for unsupported extension, got %v", err)
	}
	if stats != (Stats{}) {
		t.Errorf("Expected nothing extracted, got %+v", stats)
	}
	if tempDir.To("out").Exists() {
		t.Errorf("Destination should not be created")
	}
}

func TestExtractDefaultsToParent(t *testing.T) {
	tempDir := fspath.Begin(t.TempDir())
	zipPath := tempDir.To("bundle.zip")
	createZip(t, zipPath, func(w func(string, []byte) error) error {
		return w("inside.txt", []byte("in"))
	})

	if _, err := Extract(zipPath, fspath.Path{}, nil); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	checkFile(t, tempDir.To("inside.txt"), "in")
}

func TestExtractExclude(t *testing.T) {
	tempDir := fspath.Begin(t.TempDir())
	zipPath := tempDir.To("excl.zip")
	createZip(t, zipPath, func(w func(string, []byte) error) error {
		for _, n := range []string{"keep.txt", "skip.txt", "dir/nested.txt", "dir/other.txt", "dir/kept.txt"} {
			if err := w(n, []byte(n)); err != nil {
				return err
			}
		}
		return nil
	})

	dest := tempDir.To("out")
	stats, err := Extract(zipPath, dest, []string{"skip.txt", "dir/nested.txt", `dir\other.txt`, "/never/"})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	for _, n := range []string{"skip.txt", "dir/nested.txt", "dir/other.txt"} {
		if dest.To(n).Exists() {
			t.Errorf("Excluded entry %s was extracted", n)
		}
	}
	checkFile(t, dest.To("keep.txt"), "keep.txt")
	checkFile(t, dest.To("dir", "kept.txt"), "dir/kept.txt")
	if stats.Excluded != 3 || stats.Files != 2 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestExtractRejectsTraversal(t *testing.T) {
	tempDir := fspath.Begin(t.TempDir())
	tgzPath := tempDir.To("evil.tgz")
	createTar(t, tgzPath, func(w io.Writer) io.WriteCloser {
		return gzip.NewWriter(w)
	}, func(w func(string, []byte) error) error {
		if err := w("../escaped.txt", []byte("bad")); err != nil {
			return err
		}
		if err := w("ok/../../escaped2.txt", []byte("bad")); err != nil {
			return err
		}
		return w("fine.txt", []byte("good"))
	})

	dest := tempDir.To("jail")
	stats, err := Extract(tgzPath, dest, nil)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if tempDir.To("escaped.txt").Exists() || tempDir.To("escaped2.txt").Exists() {
		t.Errorf("Entry escaped the destination")
	}
	checkFile(t, dest.To("fine.txt"), "good")
	if stats.Rejected != 2 {
		t.Errorf("Expected 2 rejected entries, got %d", stats.Rejected)
	}
}

func TestWithin(t *testing.T) {
	type withinCase struct {
		dest fspath.Path
		key  string
		ok   bool
	}
	jail := fspath.Begin(t.TempDir())
	tests := []withinCase{
		{jail, "a/b.txt", true},
		{jail, "../b.txt", false},
		{jail, "..", false},
		{jail, "..foo/b.txt", true},
	}
	if runtime.GOOS != "windows" {
		root := fspath.Begin("/")
		tests = append(tests, withinCase{root, "usr/x", true})
	}

	for _, tt := range tests {
		target, ok := within(tt.dest, tt.key)
		if ok != tt.ok {
			t.Errorf("within(%s, %q) = %v, want %v", tt.dest, tt.key, ok, tt.ok)
		}
		if ok && target.String() != filepath.Join(tt.dest.String(), filepath.FromSlash(tt.key)) {
			t.Errorf("within(%s, %q) target %s", tt.dest, tt.key, target)
		}
	}
}

func TestExtractRestoresModTime(t *testing.T) {
	tempDir := fspath.Begin(t.TempDir())
	tgzPath := tempDir.To("dated.tar.gz")
	stamp := time.Date(2020, 5, 17, 10, 30, 0, 0, time.UTC)

	f, err := os.Create(tgzPath.String())
	if err != nil {
		t.Fatal(err)
	}
	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	content := []byte("dated")
	hdr := &tar.Header{Name: "dated.txt", Typeflag: tar.TypeReg, Mode: 0600, Size: int64(len(content)), ModTime: stamp}
	if err := tw.WriteHeader(hdr); err != nil {
		t.Fatal(err)
	}
	tw.Write(content)
	tw.Close()
	gw.Close()
	f.Close()

	dest := tempDir.To("out")
	if _, err := Extract(tgzPath, dest, nil); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	info, err := os.Stat(dest.To("dated.txt").String())
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(stamp) {
		t.Errorf("Expected mtime %v, got %v", stamp, info.ModTime())
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0111 == 0 {
		t.Errorf("Expected extracted file to be executable, got %v", info.Mode())
	}
}

func TestZipRoundTrip(t *testing.T) {
	tempDir := fspath.Begin(t.TempDir())
	src := tempDir.To("tree")
	files := map[string]string{
		"root.txt":           "root",
		"bin/tool":           "#!/bin/sh\necho hi\n",
		"lib/deep/nested.js": "module.exports = 1",
		"lib/readme.md":      "# lib",
	}
	for name, content := range files {
		if err := src.To(filepath.FromSlash(name)).ForceDir(false).WriteString(content); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(src.To("empty").String(), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(src.To("bin", "tool").String(), 0755); err != nil {
		t.Fatal(err)
	}

	zipPath := tempDir.To("tree.zip")
	if err := Zip(src, zipPath); err != nil {
		t.Fatalf("Zip failed: %v", err)
	}

	dest := tempDir.To("restored")
	if _, err := Extract(zipPath, dest, nil); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if want, got := listTree(t, src), listTree(t, dest); !equalStrings(want, got) {
		t.Errorf("Tree mismatch.\nwant %v\ngot  %v", want, got)
	}
	for name, content := range files {
		checkFile(t, dest.To(filepath.FromSlash(name)), content)
	}
	if runtime.GOOS != "windows" {
		info, err := os.Stat(dest.To("bin", "tool").String())
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm()&0100 == 0 {
			t.Errorf("Executable bit lost: %v", info.Mode())
		}
	}
}

func TestZipEntryOrder(t *testing.T) {
	tempDir := fspath.Begin(t.TempDir())
	src := tempDir.To("pkg")
	if err := src.To("a", "b.txt").WriteString("b"); err != nil {
		t.Fatal(err)
	}
	zipPath := tempDir.To("pkg.zip")
	if err := Zip(src, zipPath); err != nil {
		t.Fatal(err)
	}

	r, err := zip.OpenReader(zipPath.String())
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	if !equalStrings(names, []string{"a/", "a/b.txt"}) {
		t.Errorf("Unexpected entries %v", names)
	}
}

func TestZipSingleFile(t *testing.T) {
	tempDir := fspath.Begin(t.TempDir())
	src := tempDir.To("alone.txt")
	if err := src.WriteString("solo"); err != nil {
		t.Fatal(err)
	}
	zipPath := tempDir.To("out", "alone.zip")
	if err := Zip(src, zipPath); err != nil {
		t.Fatalf("Zip failed: %v", err)
	}

	first, err := FirstEntry(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	if first != "alone.txt" {
		t.Errorf("Expected entry alone.txt, got %q", first)
	}
}

func TestProbe(t *testing.T) {
	tempDir := fspath.Begin(t.TempDir())
	zipPath := tempDir.To("app.zip")
	createZip(t, zipPath, func(w func(string, []byte) error) error {
		if err := w("app/meta.json", []byte(`{"v":1}`)); err != nil {
			return err
		}
		return w("app/manifest.json", []byte(`{"v":2}`))
	})

	res, err := Probe(zipPath, "missing.json", "app/manifest.json", "app/meta.json")
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if res == nil {
		t.Fatal("Expected a match")
	}
	if res.Index != 2 || res.Text() != `{"v":1}` {
		t.Errorf("Expected first archive entry to win with index 2, got %d %q", res.Index, res.Text())
	}

	res, err = Probe(zipPath, "nope")
	if err != nil || res != nil {
		t.Errorf("Expected no match, got %v %v", res, err)
	}

	folder, err := MainFolder(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	if folder != "app" {
		t.Errorf("Expected main folder app, got %q", folder)
	}
}

func TestSupported(t *testing.T) {
	for name, want := range map[string]bool{
		"a.zip": true, "a.jar": true, "a.tar.gz": true, "a.tgz": true,
		"a.tar.zst": true, "a.tar": false, "a.exe": false, "noext": false,
	} {
		if got := Supported(name); got != want {
			t.Errorf("Supported(%q) = %v, want %v", name, got, want)
		}
	}
}

func createZip(t *testing.T, path fspath.Path, contentGen func(func(string, []byte) error) error) {
	f, err := os.Create(path.String())
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	defer w.Close()

	err = contentGen(func(name string, content []byte) error {
		f, err := w.Create(name)
		if err != nil {
			return err
		}
		_, err = f.Write(content)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
}

func createTar(t *testing.T, path fspath.Path, compressor func(io.Writer) io.WriteCloser, contentGen func(func(string, []byte) error) error) {
	f, err := os.Create(path.String())
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var w io.WriteCloser = f
	if compressor != nil {
		w = compressor(f)
		defer w.Close()
	}

	tw := tar.NewWriter(w)
	defer tw.Close()

	err = contentGen(func(name string, content []byte) error {
		hdr := &tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Mode:     0600,
			Size:     int64(len(content)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		_, err := tw.Write(content)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
}

func testExtraction(t *testing.T, archivePath fspath.Path, expectFile, expectSubFile string) {
	dest := archivePath.Parent().To("extract_" + archivePath.Name())
	if _, err := Extract(archivePath, dest, nil); err != nil {
		t.Fatalf("Extract failed for %s: %v", archivePath, err)
	}

	checkFile(t, dest.To("test.txt"), expectFile)
	checkFile(t, dest.To("subdir", "sub.txt"), expectSubFile)
}

func checkFile(t *testing.T, path fspath.Path, content string) {
	t.Helper()
	b, err := path.ReadBytes()
	if err != nil {
		t.Fatalf("Failed to read extracted file %s: %v", path, err)
	}
	if string(b) != content {
		t.Errorf("File %s content mismatch. Want %q, got %q", path, content, string(b))
	}
}

func listTree(t *testing.T, root fspath.Path) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root.String(), func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root.String(), p)
		if rel != "." {
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
