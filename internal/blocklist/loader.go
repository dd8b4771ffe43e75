package blocklist

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/richxcame/scamshield/pkg/logger"
	"github.com/richxcame/scamshield/pkg/storage"
	"go.uber.org/zap"
)

// ParseList reads one domain per line. Blank lines and '#' comments are
// skipped, and hosts-file lines ("0.0.0.0 domain") are accepted.
func ParseList(r io.Reader) ([]string, error) {
	var domains []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		entry := fields[0]
		if len(fields) > 1 && net.ParseIP(fields[0]) != nil {
			entry = fields[1]
		}
		domains = append(domains, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read blocklist: %w", err)
	}
	return domains, nil
}

// Load reads the denylist at key from src and builds the filter
func Load(ctx context.Context, src storage.Source, key string, fpRate float64) (*Blocklist, error) {
	start := time.Now()

	rc, err := src.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open blocklist: %w", err)
	}
	defer rc.Close()

	domains, err := ParseList(rc)
	if err != nil {
		return nil, err
	}

	bl, err := New(domains, fpRate)
	if err != nil {
		return nil, err
	}

	stats := bl.Stats()
	logger.Info("blocklist loaded",
		zap.String("provider", string(src.Provider())),
		zap.String("key", key),
		zap.Int("domains", stats.Elements),
		zap.Uint("bits", stats.Bits),
		zap.Uint("hash_functions", stats.HashFunctions),
		zap.Float64("estimated_fp_rate", stats.EstimatedFPRate),
		zap.Duration("took", time.Since(start)),
	)
	return bl, nil
}
