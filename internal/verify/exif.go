package verify

import (
	"io"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
)

// ExifGroup is a top-level EXIF directory.
type ExifGroup int

const (
	GroupZeroth ExifGroup = iota
	GroupExif
	GroupGPS
	GroupInterop
	GroupFirst
)

func (g ExifGroup) String() string {
	switch g {
	case GroupExif:
		return "Exif"
	case GroupGPS:
		return "GPS"
	case GroupInterop:
		return "Interop"
	case GroupFirst:
		return "1st"
	default:
		return "0th"
	}
}

// ExifGroups counts the tags found per group. A stream whose EXIF cannot be
// located or parsed yields an empty count: an unreadable segment cannot be
// shown to carry anything.
func ExifGroups(rs io.ReadSeeker) map[ExifGroup]int {
	counts := map[ExifGroup]int{}

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return counts
	}

	tags, _, err := exif.GetFlatExifDataUniversalSearchWithReadSeeker(rs, nil, true)
	if err != nil {
		return counts
	}

	for _, tag := range tags {
		counts[groupForPath(tag.IfdPath)]++
	}
	return counts
}

func groupForPath(ifdPath string) ExifGroup {
	switch {
	case strings.Contains(ifdPath, "GPS"):
		return GroupGPS
	case strings.Contains(ifdPath, "Iop"):
		return GroupInterop
	case strings.Contains(ifdPath, "Exif"):
		return GroupExif
	case strings.HasPrefix(ifdPath, "IFD1"):
		return GroupFirst
	default:
		return GroupZeroth
	}
}

// JPEG fails when any EXIF group holds at least one tag.
func JPEG(rs io.ReadSeeker) Result {
	for _, n := range ExifGroups(rs) {
		if n > 0 {
			return fail(NoteExifPresent)
		}
	}
	return ok()
}
