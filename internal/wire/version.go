package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a server build version "major.minor.patch.build". Missing
// trailing components compare as zero.
type Version struct {
	Major, Minor, Patch, Build int
}

// ParseVersion parses the "build" info value. Suffixes after a dash
// (e.g. "6.4.0.1-rc1") are ignored.
func ParseVersion(s string) (Version, error) {
	base, _, _ := strings.Cut(s, "-")
	parts := strings.Split(base, ".")
	if len(parts) == 0 || parts[0] == "" {
		return Version{}, fmt.Errorf("wire: empty version string %q", s)
	}
	var nums [4]int
	for i := 0; i < len(parts) && i < 4; i++ {
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			return Version{}, fmt.Errorf("wire: invalid version %q: %w", s, err)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2], Build: nums[3]}, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Patch, v.Build)
}

// AtLeast reports whether v >= other.
func (v Version) AtLeast(other Version) bool {
	a := [4]int{v.Major, v.Minor, v.Patch, v.Build}
	b := [4]int{other.Major, other.Minor, other.Patch, other.Build}
	for i := 0; i < 4; i++ {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return true
}

// Feature gates negotiated against the server version.
var (
	versionPartitionScan = Version{Major: 4, Minor: 9, Patch: 0, Build: 3}
	versionQueryShow     = Version{Major: 5, Minor: 7}
	versionExpressionOps = Version{Major: 5, Minor: 6}
	versionPKIAuth       = Version{Major: 5, Minor: 7}
	versionBatchAny      = Version{Major: 6}
	versionPartQuery     = Version{Major: 6}
	versionRecordSizeExp = Version{Major: 7}
	versionAppID         = Version{Major: 8, Minor: 1}
)

func (v Version) SupportsPartitionScan() bool  { return v.AtLeast(versionPartitionScan) }
func (v Version) SupportsQueryShow() bool      { return v.AtLeast(versionQueryShow) }
func (v Version) SupportsExpressionOps() bool  { return v.AtLeast(versionExpressionOps) }
func (v Version) SupportsPKIAuth() bool        { return v.AtLeast(versionPKIAuth) }
func (v Version) SupportsBatchAny() bool       { return v.AtLeast(versionBatchAny) }
func (v Version) SupportsPartitionQuery() bool { return v.AtLeast(versionPartQuery) }
func (v Version) SupportsRecordSizeExp() bool  { return v.AtLeast(versionRecordSizeExp) }
func (v Version) SupportsAppID() bool          { return v.AtLeast(versionAppID) }
