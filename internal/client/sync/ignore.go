package sync

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
	"github.com/shelf-sh/shelf/internal/utils"
)

const IgnoreFileName = ".shelfignore"

var defaultIgnoreLines = []string{
	// shelf
	IgnoreFileName,
	".shelf.lock",
	// vcs
	".git/",
	".hg/",
	".svn/",
	// general excludes
	"*.tmp",
	"*.swp",
	// OS-specific
	".DS_Store",
	"Thumbs.db",
}

// IgnoreList filters walked paths against the built-in rules plus the
// directory's .shelfignore file, gitignore syntax.
type IgnoreList struct {
	baseDir string
	ignore  *gitignore.GitIgnore
}

func NewIgnoreList(baseDir string) *IgnoreList {
	s := &IgnoreList{baseDir: baseDir}
	s.Load()
	return s
}

func (s *IgnoreList) Load() {
	ignorePath := filepath.Join(s.baseDir, IgnoreFileName)
	ignoreLines := defaultIgnoreLines

	if utils.FileExists(ignorePath) {
		file, err := os.Open(ignorePath)
		if err != nil {
			slog.Warn("open ignore file", "path", ignorePath, "error", err)
		} else {
			defer file.Close()
			scanner := bufio.NewScanner(file)
			for scanner.Scan() {
				if line := scanner.Text(); line != "" {
					ignoreLines = append(ignoreLines, line)
				}
			}
			if err := scanner.Err(); err != nil {
				slog.Warn("read ignore file", "path", ignorePath, "error", err)
			}
		}
	}

	s.ignore = gitignore.CompileIgnoreLines(ignoreLines...)
}

func (s *IgnoreList) ShouldIgnore(relPath string) bool {
	return s.ignore.MatchesPath(relPath)
}
