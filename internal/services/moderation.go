package services

import (
	"context"
	"database/sql"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/AnshRaj112/whisper-backend/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	ModerationOff   = "off"
	ModerationFlag  = "flag"
	ModerationBlock = "block"
)

// Base canonical words - the ONLY source of truth
var baseThreatWords = []string{
	"rape",
	"kill",
	"murder",
	"assault",
	"attack",
	"hurt",
	"destroy",
	"execute",
	"shoot",
	"stab",
	"strangle",
	"threat",
	"threatening",
	"revenge",
	"slaughter",
	"massacre",
}

var baseSelfHarmWords = []string{
	"suicide",
	"kill myself",
	"end my life",
	"take my life",
	"end it all",
	"self harm",
	"cut myself",
	"hurt myself",
	"harm myself",
	"want to die",
	"wish i was dead",
	"not worth living",
	"better off dead",
	"unalive",
}

// Dictionaries in the same collapsed form CleanText produces, so "kill" is
// compared as "kil".
var (
	canonicalThreatWords   = canonicalize(baseThreatWords)
	canonicalSelfHarmWords = canonicalize(baseSelfHarmWords)
)

var (
	obfuscationReplacer = strings.NewReplacer(
		"@", "a",
		"4", "a",
		"3", "e",
		"!", "i",
		"1", "i",
		"0", "o",
		"$", "s",
		"5", "s",
		"7", "t",
		"+", "t",
		"а", "a", // Cyrillic
		"е", "e", // Cyrillic
		"і", "i", // Cyrillic
		"о", "o", // Cyrillic
		"р", "p", // Cyrillic
	)
	spaceRegex = regexp.MustCompile(`\s+`)
)

func canonicalize(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = collapseRepeats(strings.ToLower(w))
	}
	return out
}

// CleanText normalizes text to canonical form: lower case, look-alike
// characters mapped to letters, everything else a space, repeats collapsed.
func CleanText(text string) string {
	cleaned := obfuscationReplacer.Replace(strings.ToLower(text))

	var builder strings.Builder
	for _, r := range cleaned {
		if unicode.IsLetter(r) {
			builder.WriteRune(r)
		} else {
			builder.WriteRune(' ')
		}
	}

	cleaned = collapseRepeats(builder.String())
	cleaned = spaceRegex.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// collapseRepeats reduces repeated letters to one ("rrraaape" -> "rape").
// Spaces are never collapsed.
func collapseRepeats(text string) string {
	if len(text) == 0 {
		return text
	}

	var result strings.Builder
	lastChar := rune(0)
	lastWasLetter := false

	for _, char := range text {
		isLetter := unicode.IsLetter(char)
		if isLetter && lastWasLetter && char == lastChar {
			continue
		}
		result.WriteRune(char)
		lastChar = char
		lastWasLetter = isLetter
	}

	return result.String()
}

// ContainsConfirmedWord checks if cleaned text contains any base word.
// Single words must match a whole word ("skill" is not "kill"); phrases
// match as substrings.
func ContainsConfirmedWord(cleanedText string, baseWords []string) (bool, []string) {
	var confirmedWords []string
	words := strings.Fields(cleanedText)

	for _, baseWord := range baseWords {
		if !strings.Contains(cleanedText, baseWord) {
			continue
		}
		if len(strings.Fields(baseWord)) > 1 {
			confirmedWords = append(confirmedWords, baseWord)
			continue
		}
		for _, w := range words {
			if w == baseWord {
				confirmedWords = append(confirmedWords, baseWord)
				break
			}
		}
	}

	return len(confirmedWords) > 0, confirmedWords
}

// CheckContent checks if the message contains threats or self-harm content
func CheckContent(message string) (hasThreat bool, hasSelfHarm bool, matchedKeywords []string) {
	cleanedText := CleanText(message)

	if ok, words := ContainsConfirmedWord(cleanedText, canonicalThreatWords); ok {
		hasThreat = true
		matchedKeywords = append(matchedKeywords, words...)
	}
	if ok, words := ContainsConfirmedWord(cleanedText, canonicalSelfHarmWords); ok {
		hasSelfHarm = true
		matchedKeywords = append(matchedKeywords, words...)
	}

	return hasThreat, hasSelfHarm, matchedKeywords
}

// FlagLedger persists moderation records.
type FlagLedger interface {
	RecordFlag(ctx context.Context, flag models.MessageFlag) error
}

// Moderator screens anonymous submissions before they are stored.
type Moderator struct {
	mode   string
	ledger FlagLedger
	log    *logrus.Logger
}

// NewModerator builds a moderator for mode; ledger may be nil, in which case
// flags are only logged.
func NewModerator(mode string, ledger FlagLedger, log *logrus.Logger) *Moderator {
	return &Moderator{mode: mode, ledger: ledger, log: log}
}

// Review returns ErrRejectedByModeration when the moderator is blocking and
// content matched. Ledger failures are logged and never reject a message.
func (m *Moderator) Review(ctx context.Context, recipientID, ipAddress, content string) error {
	if m.mode == ModerationOff {
		return nil
	}

	hasThreat, hasSelfHarm, keywords := CheckContent(content)
	if !hasThreat && !hasSelfHarm {
		return nil
	}

	flag := models.MessageFlag{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		RecipientID: recipientID,
		IPAddress:   ipAddress,
		Type:        models.FlagTypeSelfHarm,
		Keywords:    keywords,
		ActionTaken: "flagged",
	}
	if hasThreat {
		flag.Type = models.FlagTypeThreat
	}
	if m.mode == ModerationBlock {
		flag.ActionTaken = "blocked"
	}

	m.log.WithFields(logrus.Fields{
		"recipient_id": recipientID,
		"ip":           ipAddress,
		"type":         flag.Type,
		"keywords":     keywords,
		"action":       flag.ActionTaken,
	}).Warn("Message matched moderation dictionary")

	if m.ledger != nil {
		if err := m.ledger.RecordFlag(ctx, flag); err != nil {
			m.log.WithError(err).Error("Failed to record moderation flag")
		}
	}

	if m.mode == ModerationBlock {
		return ErrRejectedByModeration
	}
	return nil
}

// PostgresFlagLedger writes flags to the message_flags table.
type PostgresFlagLedger struct {
	db *sql.DB
}

func NewPostgresFlagLedger(db *sql.DB) *PostgresFlagLedger {
	return &PostgresFlagLedger{db: db}
}

func (l *PostgresFlagLedger) RecordFlag(ctx context.Context, flag models.MessageFlag) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO message_flags (id, created_at, recipient_id, ip_address, type, keywords, action_taken)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		flag.ID, flag.CreatedAt, flag.RecipientID, flag.IPAddress, string(flag.Type),
		strings.Join(flag.Keywords, ","), flag.ActionTaken,
	)
	return err
}

// Purge removes flags created before cutoff.
func (l *PostgresFlagLedger) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM message_flags WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// StartFlagRetention purges flags older than maxAge every interval until ctx
// is cancelled. The first purge runs immediately.
func StartFlagRetention(ctx context.Context, ledger *PostgresFlagLedger, interval, maxAge time.Duration, log *logrus.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	if maxAge <= 0 {
		maxAge = 30 * 24 * time.Hour
	}

	purge := func() {
		n, err := ledger.Purge(ctx, time.Now().UTC().Add(-maxAge))
		if err != nil {
			log.WithError(err).Warn("Failed to purge moderation flags")
			return
		}
		if n > 0 {
			log.WithField("deleted", n).Info("Purged old moderation flags")
		}
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		purge()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				purge()
			}
		}
	}()
}
