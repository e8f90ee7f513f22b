package outfit

import (
	"encoding/binary"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"makemyoutfit/internal/domain"
)

// revisionPrefix names managed revision objects. Caller ids may not use it.
const revisionPrefix = "rev-"

var outfitIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidOutfitID reports whether id is safe to use as an object name and stays
// out of the revision namespace.
func ValidOutfitID(id string) bool {
	return outfitIDPattern.MatchString(id) && !reservedOutfitID(id)
}

func reservedOutfitID(id string) bool {
	return len(id) >= len(revisionPrefix) && strings.EqualFold(id[:len(revisionPrefix)], revisionPrefix)
}

func checkOutfitID(id string) error {
	switch {
	case reservedOutfitID(id):
		return domain.InvalidInput("outfitId must not start with %q", revisionPrefix)
	case !outfitIDPattern.MatchString(id):
		return domain.InvalidInput("outfitId may only contain letters, digits, '.', '_' and '-'")
	}
	return nil
}

// NewOutfitID returns an identifier shaped like OUT-<base36 millis>-<4 base36>.
func NewOutfitID(now time.Time) string {
	u := uuid.New()
	r := binary.BigEndian.Uint32(u[:4]) % (36 * 36 * 36 * 36)
	suffix := strconv.FormatUint(uint64(r), 36)
	suffix = strings.Repeat("0", 4-len(suffix)) + suffix
	return strings.ToUpper("OUT-" + strconv.FormatInt(now.UnixMilli(), 36) + "-" + suffix)
}

// RevisionObjectName returns the managed object name of a revision:
// rev-<base36 millis>-<4 hex>.png.
func RevisionObjectName(now time.Time) string {
	u := uuid.New()
	return revisionPrefix + strconv.FormatInt(now.UnixMilli(), 36) + "-" + hex.EncodeToString(u[:2]) + ".png"
}
