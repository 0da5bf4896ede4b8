package cryptox

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/klubhub/klubhub/pkg/logx"
)

// BreachChecker performs a k-anonymity lookup against a hash-prefix service
// (haveibeenpwned range API shape). Only the first 5 hex characters of the
// password's SHA-1 ever leave the process.
type BreachChecker struct {
	baseURL string
	client  *http.Client
	enabled bool
}

// NewBreachChecker creates a checker. An empty baseURL or enabled=false turns
// the check into a no-op.
func NewBreachChecker(baseURL string, timeout time.Duration, enabled bool) *BreachChecker {
	return &BreachChecker{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		enabled: enabled && baseURL != "",
	}
}

// Count returns how many times the password appears in the breach corpus.
// Network or service failures are swallowed and treated as "not breached"
// (fail-open) — the policy is that a flaky upstream must not block signups.
func (b *BreachChecker) Count(ctx context.Context, password string) int {
	if !b.enabled {
		return 0
	}

	sum := sha1.Sum([]byte(password))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := digest[:5], digest[5:]

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", b.baseURL, prefix), nil)
	if err != nil {
		logx.WithError(err).Warn("cryptox: breach check request build failed, treating as not breached")
		return 0
	}

	resp, err := b.client.Do(req)
	if err != nil {
		logx.WithError(err).Warn("cryptox: breach check unreachable, treating as not breached")
		return 0
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logx.Warnf("cryptox: breach check returned status %d, treating as not breached", resp.StatusCode)
		return 0
	}

	// Response lines are "SUFFIX:COUNT".
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		rest, ok := strings.CutPrefix(line, suffix+":")
		if !ok {
			continue
		}
		count, err := strconv.Atoi(strings.TrimSpace(rest))
		if err != nil {
			continue
		}
		return count
	}
	if err := scanner.Err(); err != nil {
		logx.WithError(err).Warn("cryptox: breach check read failed, treating as not breached")
	}
	return 0
}
