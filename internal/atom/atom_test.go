package atom

import (
	"bytes"
	"math"
	"testing"
	"time"
)

const creationKey = "com.apple.quicktime.creationdate"

func TestParseDateFallback(t *testing.T) {
	want := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-03-15T10:00:00", "2024:03:15 10:00:00", "2024-03-15 10:00:00"} {
		got, err := parseDate(in)
		if err != nil {
			t.Errorf("parseDate(%q) error = %v", in, err)
			continue
		}
		if !got.Equal(want) || got.Location() != time.UTC {
			t.Errorf("parseDate(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := parseDate("not a date"); err == nil {
		t.Error("expected error for garbage")
	}
}

func TestCreationDateFromMdta(t *testing.T) {
	want := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		buf        []byte
		wantStatus Status
		wantTime   time.Time
	}{
		{
			name:       "creationdate as first key",
			buf:        quickTimeFile(mvhdV0(0), []string{creationKey}, ilstItem(1, "2024-03-15T10:00:00Z")),
			wantStatus: Found,
			wantTime:   want,
		},
		{
			name: "creationdate after other keys",
			buf: quickTimeFile(mvhdV0(0),
				[]string{"com.apple.quicktime.make", "com.apple.quicktime.model", creationKey},
				ilstItem(1, "Apple"),
				ilstItem(2, "iPhone 15 Pro"),
				ilstItem(3, "2024-03-15T19:00:00+0900"),
			),
			wantStatus: Found,
			wantTime:   want,
		},
		{
			name:       "fractional seconds and offset",
			buf:        quickTimeFile(mvhdV0(0), []string{creationKey}, ilstItem(1, "2024-03-15T12:00:00.000+0200")),
			wantStatus: Found,
			wantTime:   want,
		},
		{
			name:       "trailing NUL and whitespace are dropped",
			buf:        quickTimeFile(mvhdV0(0), []string{creationKey}, ilstItem(1, " 2024-03-15T10:00:00Z\x00\x00")),
			wantStatus: Found,
			wantTime:   want,
		},
		{
			name:       "zone-less ISO string is UTC",
			buf:        quickTimeFile(mvhdV0(0), []string{creationKey}, ilstItem(1, "2024-03-15T10:00:00")),
			wantStatus: Found,
			wantTime:   want,
		},
		{
			name:       "EXIF style colon date is UTC",
			buf:        quickTimeFile(mvhdV0(0), []string{creationKey}, ilstItem(1, "2024:03:15 10:00:00")),
			wantStatus: Found,
			wantTime:   want,
		},
		{
			name:       "no keys atom",
			buf:        append(ftypAtom(), box("moov", mvhdV0(0))...),
			wantStatus: NotPresent,
		},
		{
			name:       "keys without creationdate",
			buf:        quickTimeFile(mvhdV0(0), []string{"com.apple.quicktime.make"}, ilstItem(1, "Apple")),
			wantStatus: NotPresent,
		},
		{
			name:       "creationdate key without matching item",
			buf:        quickTimeFile(mvhdV0(0), []string{"com.apple.quicktime.make", creationKey}, ilstItem(1, "Apple")),
			wantStatus: NotPresent,
		},
		{
			name:       "unparseable value",
			buf:        quickTimeFile(mvhdV0(0), []string{creationKey}, ilstItem(1, "not a date at all")),
			wantStatus: Malformed,
		},
		{
			name:       "empty buffer",
			buf:        nil,
			wantStatus: NotPresent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CreationDateFromMdta(tt.buf)
			if got.Status != tt.wantStatus {
				t.Fatalf("CreationDateFromMdta() status = %v (%s), want %v", got.Status, got.Reason, tt.wantStatus)
			}
			if tt.wantStatus == Found && !got.Value.Equal(tt.wantTime) {
				t.Errorf("CreationDateFromMdta() = %v, want %v", got.Value, tt.wantTime)
			}
			if tt.wantStatus != Found && got.Reason == "" {
				t.Error("expected a reason for a non-found result")
			}
		})
	}
}

func TestCreationDateFromMdta_TruncatedSizes(t *testing.T) {
	good := quickTimeFile(mvhdV0(0), []string{creationKey}, ilstItem(1, "2024-03-15T10:00:00Z"))

	keysOff := bytes.Index(good, []byte("keys")) - 4
	ilstOff := bytes.Index(good, []byte("ilst")) - 4
	dataOff := bytes.Index(good, []byte("data")) - 4

	tests := []struct {
		name   string
		offset int
		size   uint32
	}{
		{"keys larger than buffer", keysOff, 1 << 30},
		{"keys smaller than its header", keysOff, 4},
		{"ilst larger than buffer", ilstOff, uint32(len(good))},
		{"item larger than ilst", ilstOff + 8, 4096},
		{"data atom larger than item", dataOff, 4096},
		{"data atom shorter than header", dataOff, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := bytes.Clone(good)
			copy(buf[tt.offset:], be32(tt.size))

			got := CreationDateFromMdta(buf)
			if got.Status != Malformed {
				t.Errorf("status = %v (%s), want Malformed", got.Status, got.Reason)
			}
		})
	}
}

func TestCreationTimeFromMvhd(t *testing.T) {
	tests := []struct {
		name       string
		mvhd       []byte
		wantStatus Status
		wantTime   time.Time
	}{
		{
			name:       "version 0",
			mvhd:       mvhdV0(uint32(unixToMP4(1700000000))),
			wantStatus: Found,
			wantTime:   time.Unix(1700000000, 0).UTC(),
		},
		{
			name:       "version 1",
			mvhd:       mvhdV1(unixToMP4(1700000000)),
			wantStatus: Found,
			wantTime:   time.Unix(1700000000, 0).UTC(),
		},
		{
			name:       "version 1 past 32 bits",
			mvhd:       mvhdV1(unixToMP4(4102444800)),
			wantStatus: Found,
			wantTime:   time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "unset creation time",
			mvhd:       mvhdV0(0),
			wantStatus: NotPresent,
		},
		{
			name:       "before the unix epoch",
			mvhd:       mvhdV0(1000),
			wantStatus: Malformed,
		},
		{
			name:       "year 1999 is outside the window",
			mvhd:       mvhdV0(uint32(unixToMP4(915148800))),
			wantStatus: Malformed,
		},
		{
			name:       "far future version 1",
			mvhd:       mvhdV1(math.MaxUint64),
			wantStatus: Malformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := append(ftypAtom(), box("moov", tt.mvhd)...)
			got := CreationTimeFromMvhd(buf)
			if got.Status != tt.wantStatus {
				t.Fatalf("CreationTimeFromMvhd() status = %v (%s), want %v", got.Status, got.Reason, tt.wantStatus)
			}
			if tt.wantStatus == Found && !got.Value.Equal(tt.wantTime) {
				t.Errorf("CreationTimeFromMvhd() = %v, want %v", got.Value, tt.wantTime)
			}
		})
	}
}

func TestCreationTimeFromMvhd_Truncated(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{"tag at end of buffer", []byte("\x00\x00\x00\x08mvhd")},
		{"v0 count cut short", []byte("\x00\x00\x00\x6cmvhd\x00\x00\x00\x00\xd5")},
		{"v1 count cut short", []byte("\x00\x00\x00\x78mvhd\x01\x00\x00\x00\x00\x00\x00\x00\xe1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CreationTimeFromMvhd(tt.buf)
			if got.Status != Malformed {
				t.Errorf("status = %v (%s), want Malformed", got.Status, got.Reason)
			}
		})
	}
}

func TestMdtaAndMvhdAreIndependent(t *testing.T) {
	// The vendor date and the movie header disagree; each lookup reports its own atom.
	buf := quickTimeFile(
		mvhdV0(uint32(unixToMP4(1700000000))),
		[]string{creationKey},
		ilstItem(1, "2024-03-15T10:00:00Z"),
	)

	mdta := CreationDateFromMdta(buf)
	mvhd := CreationTimeFromMvhd(buf)
	if !mdta.Ok() || !mvhd.Ok() {
		t.Fatalf("mdta = %v, mvhd = %v, want both Found", mdta.Status, mvhd.Status)
	}
	if want := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC); !mdta.Value.Equal(want) {
		t.Errorf("mdta = %v, want %v", mdta.Value, want)
	}
	if want := time.Unix(1700000000, 0).UTC(); !mvhd.Value.Equal(want) {
		t.Errorf("mvhd = %v, want %v", mvhd.Value, want)
	}
}

func TestGPS(t *testing.T) {
	tests := []struct {
		name       string
		buf        []byte
		wantStatus Status
		wantLat    float64
		wantLon    float64
	}{
		{
			name:       "northern eastern",
			buf:        box("udta", box("\xa9xyz", be32(0x0012_15c7), []byte("+35.123456+129.012345/"))),
			wantStatus: Found,
			wantLat:    35.123456,
			wantLon:    129.012345,
		},
		{
			name:       "southern eastern with altitude",
			buf:        []byte("....-33.8688+151.2093+012.000/...."),
			wantStatus: Found,
			wantLat:    -33.8688,
			wantLon:    151.2093,
		},
		{
			name:       "western hemisphere",
			buf:        []byte("+40.7128-074.0060/"),
			wantStatus: Found,
			wantLat:    40.7128,
			wantLon:    -74.006,
		},
		{
			name:       "separated pair is not accepted",
			buf:        []byte("+35.1234, +129.0123"),
			wantStatus: NotPresent,
		},
		{
			name:       "single decimal place",
			buf:        []byte("+35.1+129.0"),
			wantStatus: NotPresent,
		},
		{
			name:       "empty",
			buf:        nil,
			wantStatus: NotPresent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GPS(tt.buf)
			if got.Status != tt.wantStatus {
				t.Fatalf("GPS() status = %v (%s), want %v", got.Status, got.Reason, tt.wantStatus)
			}
			if tt.wantStatus != Found {
				return
			}
			if math.Abs(got.Value.Latitude-tt.wantLat) > 1e-9 {
				t.Errorf("Latitude = %v, want %v", got.Value.Latitude, tt.wantLat)
			}
			if math.Abs(got.Value.Longitude-tt.wantLon) > 1e-9 {
				t.Errorf("Longitude = %v, want %v", got.Value.Longitude, tt.wantLon)
			}
		})
	}
}

func TestGPS_ScanLimit(t *testing.T) {
	loc := []byte("+35.123456+129.012345/")

	inside := make([]byte, GPSScanLimit+1024)
	copy(inside[GPSScanLimit-len(loc):], loc)
	if got := GPS(inside); got.Status != Found {
		t.Errorf("location ending at the limit: status = %v, want Found", got.Status)
	}

	beyond := make([]byte, GPSScanLimit+1024)
	copy(beyond[GPSScanLimit:], loc)
	if got := GPS(beyond); got.Status != NotPresent {
		t.Errorf("location past the limit: status = %v, want NotPresent", got.Status)
	}
}

func TestScanner_StructuredIgnoresPayloadMatches(t *testing.T) {
	// A free atom carrying the bytes "mvhd" and "keys" ahead of the real boxes.
	decoy := box("free", []byte("\xff\xff\xff\xffmvhd\x00\x00\x00\x00\x00\x00\x00\x00 \xff\xff\xff\xffkeys junk"))
	real := quickTimeFile(
		mvhdV0(uint32(unixToMP4(1700000000))),
		[]string{creationKey},
		ilstItem(1, "2024-03-15T10:00:00Z"),
	)
	ftyp := ftypAtom()
	buf := append(append(bytes.Clone(ftyp), decoy...), real[len(ftyp):]...)

	linear := NewScanner(buf, Linear)
	if got := linear.CreationTimeFromMvhd(); got.Status == Found {
		t.Errorf("linear mvhd = %v, want the decoy to shadow the real header", got.Value)
	}
	if got := linear.CreationDateFromMdta(); got.Status != Malformed {
		t.Errorf("linear mdta status = %v, want Malformed from the decoy keys", got.Status)
	}

	structured := NewScanner(buf, Structured)
	if got := structured.CreationTimeFromMvhd(); !got.Ok() || !got.Value.Equal(time.Unix(1700000000, 0).UTC()) {
		t.Errorf("structured mvhd = %v (%v %s), want 2023-11-14T22:13:20Z", got.Value, got.Status, got.Reason)
	}
	if got := structured.CreationDateFromMdta(); !got.Ok() || !got.Value.Equal(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("structured mdta = %v (%v %s), want 2024-03-15T10:00:00Z", got.Value, got.Status, got.Reason)
	}
}

func TestScanner_StructuredMissingBox(t *testing.T) {
	s := NewScanner(append(ftypAtom(), box("moov", mvhdV0(0))...), Structured)
	if got := s.CreationDateFromMdta(); got.Status != NotPresent {
		t.Errorf("status = %v (%s), want NotPresent", got.Status, got.Reason)
	}
}

func TestScanner_NeverPanicsOnPrefixes(t *testing.T) {
	full := quickTimeFile(
		mvhdV1(unixToMP4(1700000000)),
		[]string{"com.apple.quicktime.make", creationKey, "com.apple.quicktime.location.ISO6709"},
		ilstItem(1, "Apple"),
		ilstItem(2, "2024-03-15T10:00:00Z"),
		ilstItem(3, "+35.123456+129.012345/"),
	)

	for _, mode := range []Mode{Linear, Structured} {
		for n := 0; n <= len(full); n++ {
			s := NewScanner(full[:n], mode)
			_ = s.CreationDateFromMdta()
			_ = s.CreationTimeFromMvhd()
			_ = s.GPS()
		}
	}
}

func TestScanner_Idempotent(t *testing.T) {
	buf := quickTimeFile(
		mvhdV0(uint32(unixToMP4(1700000000))),
		[]string{creationKey},
		ilstItem(1, "2024-03-15T10:00:00Z"),
		ilstItem(2, "+35.123456+129.012345/"),
	)
	orig := bytes.Clone(buf)

	for _, mode := range []Mode{Linear, Structured} {
		s := NewScanner(buf, mode)
		mdta, mvhd, gps := s.CreationDateFromMdta(), s.CreationTimeFromMvhd(), s.GPS()
		for i := 0; i < 3; i++ {
			if got := s.CreationDateFromMdta(); got != mdta {
				t.Errorf("%v: mdta changed between calls: %+v vs %+v", mode, got, mdta)
			}
			if got := s.CreationTimeFromMvhd(); got != mvhd {
				t.Errorf("%v: mvhd changed between calls: %+v vs %+v", mode, got, mvhd)
			}
			if got := s.GPS(); got != gps {
				t.Errorf("%v: gps changed between calls: %+v vs %+v", mode, got, gps)
			}
		}
	}
	if !bytes.Equal(buf, orig) {
		t.Error("scanner modified its input buffer")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", Linear, false},
		{"linear", Linear, false},
		{" Structured ", Structured, false},
		{"tree", Linear, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestStatusString(t *testing.T) {
	tests := map[Status]string{NotPresent: "not_present", Found: "found", Malformed: "malformed"}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(s), got, want)
		}
	}
}

func TestScanner_LargesizeHeaders(t *testing.T) {
	meta := box("meta",
		largeBox(keysAtom(creationKey)),
		largeBox(box("ilst", ilstItem(1, "2024-03-15T10:00:00Z"))),
	)
	buf := append(ftypAtom(), box("moov", largeBox(mvhdV0(uint32(unixToMP4(1700000000)))), meta)...)

	for _, mode := range []Mode{Linear, Structured} {
		s := NewScanner(buf, mode)
		if got := s.CreationTimeFromMvhd(); !got.Ok() || !got.Value.Equal(time.Unix(1700000000, 0).UTC()) {
			t.Errorf("mode %v: mvhd = %v (%v %s), want 2023-11-14T22:13:20Z", mode, got.Value, got.Status, got.Reason)
		}
		if got := s.CreationDateFromMdta(); !got.Ok() || !got.Value.Equal(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)) {
			t.Errorf("mode %v: mdta = %v (%v %s), want 2024-03-15T10:00:00Z", mode, got.Value, got.Status, got.Reason)
		}
	}
}
