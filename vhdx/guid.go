package vhdx

import "github.com/google/uuid"

// Known metadata-entry GUIDs.
var (
	fileParametersGUID   = uuid.MustParse("CAA16737-FA36-4D43-B3B6-33F0AA44E76B")
	virtualDiskSizeGUID  = uuid.MustParse("2FA54224-CD1B-4876-B211-5DBED83BF4B8")
	logicalSectorSizeGUID = uuid.MustParse("8141BF1D-A96F-4709-BA47-F233A8FAAB5F")
	physicalSectorSizeGUID = uuid.MustParse("CDA348C7-445D-4471-9CC9-E9885251C556")
	page83DataGUID        = uuid.MustParse("BECA12AB-B2E6-4523-93EF-C309E000C746")
)

// newGUID generates a fresh random GUID for the per-file identifiers
// (file-write, data-write, log) a header carries.
func newGUID() uuid.UUID {
	return uuid.New()
}

func guidBytes(id uuid.UUID) [16]byte {
	var b [16]byte
	copy(b[:], id[:])
	return b
}
