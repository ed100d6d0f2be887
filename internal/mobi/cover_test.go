package mobi

import "testing"

func TestResolveCover(t *testing.T) {
	u32 := func(v uint32) *uint32 { return &v }

	images := []ImageDescriptor{
		{RecordIndex: 5, MediaType: "image/jpeg", Size: 100},
		{RecordIndex: 7, MediaType: "image/png", Size: 200},
		{RecordIndex: 8, MediaType: "image/gif", Size: 300},
	}

	tests := []struct {
		name       string
		meta       Metadata
		firstImage int
		images     []ImageDescriptor
		wantIndex  int
		wantSource CoverSource
		wantOK     bool
	}{
		{
			name:       "cover offset",
			meta:       Metadata{CoverOffset: u32(2), ThumbnailOffset: u32(3)},
			firstImage: 5,
			images:     images,
			wantIndex:  7,
			wantSource: CoverFromOffset,
			wantOK:     true,
		},
		{
			name:       "cover offset on non-image falls back to thumbnail",
			meta:       Metadata{CoverOffset: u32(1), ThumbnailOffset: u32(3)},
			firstImage: 5,
			images:     images,
			wantIndex:  8,
			wantSource: CoverFromThumbnail,
			wantOK:     true,
		},
		{
			name:       "offset past the container falls back to first image",
			meta:       Metadata{CoverOffset: u32(0xFFFFFFF0)},
			firstImage: 5,
			images:     images,
			wantIndex:  5,
			wantSource: CoverFromFirst,
			wantOK:     true,
		},
		{
			name:       "no offsets",
			firstImage: 5,
			images:     images,
			wantIndex:  5,
			wantSource: CoverFromFirst,
			wantOK:     true,
		},
		{
			name:       "no images",
			meta:       Metadata{CoverOffset: u32(0)},
			firstImage: 5,
		},
		{
			name:       "no first image record ignores offsets",
			meta:       Metadata{CoverOffset: u32(2)},
			firstImage: -1,
			images:     images,
			wantIndex:  5,
			wantSource: CoverFromFirst,
			wantOK:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, source, ok := resolveCover(tt.meta, tt.firstImage, tt.images)
			if ok != tt.wantOK {
				t.Fatalf("resolveCover() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if desc.RecordIndex != tt.wantIndex || source != tt.wantSource {
				t.Fatalf("resolveCover() = record %d (%s), want record %d (%s)", desc.RecordIndex, source, tt.wantIndex, tt.wantSource)
			}
		})
	}
}
