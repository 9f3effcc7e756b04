// Package engconfig implements the configuration and file-naming
// contract (§4.K): a flat key/value file loaded eagerly, with required
// keys validated at load time rather than on first use.
package engconfig

import (
	"bufio"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Keys recognized in a config file, named exactly as §4.K lists them.
const (
	KeyBaseDir               = "base.dir"
	KeySourceConnURL         = "source.conn.url"
	KeySourceConnCredentials = "source.conn.credentials"
	KeySourceDriverClass     = "source.driver.class"
	KeySourceDriverClasspath = "source.driver.classpath"
	KeyHashConnURL           = "hash.conn.url"
	KeyHashConnDriver        = "hash.conn.driver"
	KeyHashTablePrefix       = "hash.table.prefix"
	KeySourceSizeQuery       = "source.size.query"
	KeySourceRowQuery        = "source.row.query"
	KeySourceSaltSeed        = "source.salt.seed"
	KeyCommentPrefix         = "grammar.comment.prefix"
	KeyTokenDelimiters       = "grammar.token.delimiters"
	KeyDex                   = "dex"
	KeyReportTemplatePath    = "report.template.path"
)

var requiredKeys = []string{
	KeySourceConnURL,
	KeyHashTablePrefix,
	KeySourceSizeQuery,
	KeySourceRowQuery,
	KeySourceSaltSeed,
}

// Config is the typed, validated result of loading a key/value file.
type Config struct {
	BaseDir               string
	SourceConnURL         string
	SourceConnCredentials map[string]string
	SourceDriverClass     string
	SourceDriverClasspath string
	HashConnURL           string
	HashConnDriver        string
	HashTablePrefix       string
	SourceSizeQuery       string
	SourceRowQuery        string
	SourceSaltSeed        [32]byte
	CommentPrefix         string
	TokenDelimiters       []rune
	Dex                   uint
	ReportTemplatePath    string
}

// Load reads and validates a flat "key = value" config file. Required
// keys missing entirely, a malformed salt seed, or an out-of-range dex
// all fail eagerly rather than surfacing later mid-scan.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "engconfig: opening config file")
	}
	defer f.Close()
	return load(f, filepath.Dir(path))
}

func load(r io.Reader, defaultBaseDir string) (*Config, error) {
	raw, err := parseKeyValue(r)
	if err != nil {
		return nil, err
	}

	for _, key := range requiredKeys {
		if _, ok := raw[key]; !ok {
			return nil, errors.Errorf("engconfig: missing required key %q", key)
		}
	}

	cfg := &Config{
		BaseDir:               raw[KeyBaseDir],
		SourceConnURL:         raw[KeySourceConnURL],
		SourceDriverClass:     raw[KeySourceDriverClass],
		SourceDriverClasspath: raw[KeySourceDriverClasspath],
		HashConnURL:           raw[KeyHashConnURL],
		HashConnDriver:        raw[KeyHashConnDriver],
		HashTablePrefix:       raw[KeyHashTablePrefix],
		SourceSizeQuery:       raw[KeySourceSizeQuery],
		SourceRowQuery:        raw[KeySourceRowQuery],
		CommentPrefix:         raw[KeyCommentPrefix],
		ReportTemplatePath:    raw[KeyReportTemplatePath],
	}
	if cfg.BaseDir == "" {
		cfg.BaseDir = defaultBaseDir
	}
	if cfg.HashConnURL == "" {
		cfg.HashConnURL = cfg.SourceConnURL
	}

	if creds, ok := raw[KeySourceConnCredentials]; ok {
		cfg.SourceConnCredentials = parseCredentials(creds)
	}

	seed, err := hex.DecodeString(raw[KeySourceSaltSeed])
	if err != nil || len(seed) != 32 {
		return nil, errors.Errorf("engconfig: %s must be exactly 64 hex characters", KeySourceSaltSeed)
	}
	copy(cfg.SourceSaltSeed[:], seed)

	if delims, ok := raw[KeyTokenDelimiters]; ok && delims != "" {
		cfg.TokenDelimiters = []rune(delims)
		if err := requireNoDuplicateRunes(cfg.TokenDelimiters); err != nil {
			return nil, err
		}
	}

	if dexStr, ok := raw[KeyDex]; ok {
		dex, err := strconv.ParseUint(dexStr, 10, 8)
		if err != nil || dex > 63 {
			return nil, errors.Errorf("engconfig: %s must be an integer in [0,63]", KeyDex)
		}
		cfg.Dex = uint(dex)
	} else {
		cfg.Dex = 63 // disables offset checkpointing
	}

	return cfg, nil
}

func parseKeyValue(r io.Reader) (map[string]string, error) {
	out := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			return nil, errors.Errorf("engconfig: malformed line %q, expected key = value", line)
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		out[key] = val
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "engconfig: scanning config file")
	}
	return out, nil
}

func parseCredentials(s string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, ":", 2)
		if len(kv) != 2 {
			continue
		}
		out[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return out
}

func requireNoDuplicateRunes(rs []rune) error {
	seen := make(map[rune]bool, len(rs))
	for _, r := range rs {
		if seen[r] {
			return errors.Errorf("engconfig: %s contains duplicate delimiter %q", KeyTokenDelimiters, r)
		}
		seen[r] = true
	}
	return nil
}

// TrackingDirName returns the sibling directory name the engine uses
// when a journal is tracked by a full repo rather than a single seal
// file (§6): a fixed prefix plus the journal's own file name.
func TrackingDirName(journalPath string) string {
	return filepath.Join(filepath.Dir(journalPath), ".ledger-"+filepath.Base(journalPath))
}
