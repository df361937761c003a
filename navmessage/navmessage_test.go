package navmessage_test

import (
	"encoding/hex"
	"testing"

	"osnma/bitfields"
	"osnma/bits"
	"osnma/gst"
	"osnma/navmessage"
	"osnma/storage"
	"osnma/tesla"
)

func testChain() tesla.Chain {
	return tesla.Chain{
		Status:       tesla.ChainTest,
		ID:           1,
		Hash:         bitfields.HashSha256,
		Mac:          bitfields.MacHmacSha256,
		KeySizeBytes: 16,
		TagSizeBits:  40,
		Maclt:        0x21,
		Alpha:        0x25d3964da3a2,
	}
}

// Navigation data for E21 on 2022-03-07 ~9:00 UTC (549 bits).
func navdataE21(t *testing.T) bits.Slice {
	t.Helper()
	data, err := hex.DecodeString(
		"1207d0ec19902e001fe106aa04ed9712" +
			"11f0561f49eace67884d1857819f123f" +
			"f037489342c3c296c765c3831ac48540" +
			"017ffd87d0fe85ee31fff6200c680bfe" +
			"4800501400")
	if err != nil {
		t.Fatal(err)
	}
	return bits.New(data).Slice(0, 549)
}

// inavWords synthesizes the INAV words 1 to 5 that carry the given CED
// and status data.
func inavWords(t *testing.T, navdata bits.Slice) [5][]byte {
	t.Helper()
	ranges := []struct {
		dataStart, dataEnd int
		wordStart, wordEnd int
	}{
		{0, 120, 6, 126},
		{120, 240, 6, 126},
		{240, 362, 6, 128},
		{362, 482, 6, 126},
		{482, 549, 6, 73},
	}
	var words [5][]byte
	for j, r := range ranges {
		word := make([]byte, navmessage.InavWordBytes)
		w := bits.New(word)
		w.Slice(0, 6).SetUint64(uint64(j + 1))
		bits.Copy(w.Slice(r.wordStart, r.wordEnd), navdata.Slice(r.dataStart, r.dataEnd))
		words[j] = word
	}
	return words
}

// mackWithTag0 builds a MACK message holding the given tag0 and COP.
func mackWithTag0(t *testing.T, tag0Hex string, cop uint8) []byte {
	t.Helper()
	tag0, err := hex.DecodeString(tag0Hex)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, bitfields.MackMessageBytes)
	s := bits.New(buf)
	bits.Copy(s.Slice(0, 40), bits.New(tag0))
	s.Slice(52, 56).SetUint64(uint64(cop))
	return buf
}

func feedE21(t *testing.T, c *navmessage.Collector, g gst.Gst) {
	t.Helper()
	svn, err := gst.NewSvn(21)
	if err != nil {
		t.Fatal(err)
	}
	for j, word := range inavWords(t, navdataE21(t)) {
		c.Feed(word, svn, g.AddSeconds(2*j), navmessage.BandE1B)
	}
}

func e21Key(t *testing.T) tesla.ValidatedKey {
	t.Helper()
	keyBytes, err := hex.DecodeString("1958e7766fb408cbd6a8defce4c7d566")
	if err != nil {
		t.Fatal(err)
	}
	key, err := tesla.NewKey(keyBytes, gst.New(1176, 121080), testChain())
	if err != nil {
		t.Fatal(err)
	}
	return tesla.ForceValid(key)
}

func TestProcessMackAuthenticates(t *testing.T) {
	c := navmessage.NewCollector(storage.Small)
	svn, _ := gst.NewSvn(21)
	gstNav := gst.New(1176, 121020)
	feedE21(t, c, gstNav)

	if _, ok := c.GetCedAndStatus(svn); ok {
		t.Fatal("data should not be authenticated before any tag is processed")
	}

	key := e21Key(t)
	mack := tesla.ForceValidMack(bitfields.NewMack(mackWithTag0(t, "8f54588871", 1), 128, 40))
	c.ProcessMack(mack, key, svn, gst.New(1176, 121050), bitfields.NmaTest)

	data, ok := c.GetCedAndStatus(svn)
	if !ok {
		t.Fatal("data should be authenticated after tag0 verification")
	}
	if data.Authbits() != 40 {
		t.Fatalf("expected 40 authentication bits, got %d", data.Authbits())
	}
	if data.Gst() != gstNav {
		t.Fatalf("unexpected data GST: %v", data.Gst())
	}
	if !bits.Equal(data.Data(), navdataE21(t)) {
		t.Fatal("authenticated data differs from the fed data")
	}
}

func TestProcessMackWrongTag(t *testing.T) {
	c := navmessage.NewCollector(storage.Small)
	svn, _ := gst.NewSvn(21)
	feedE21(t, c, gst.New(1176, 121020))

	key := e21Key(t)
	mack := tesla.ForceValidMack(bitfields.NewMack(mackWithTag0(t, "8f54588872", 1), 128, 40))
	c.ProcessMack(mack, key, svn, gst.New(1176, 121050), bitfields.NmaTest)

	if _, ok := c.GetCedAndStatus(svn); ok {
		t.Fatal("a wrong tag must not authenticate data")
	}
}

func TestCopGating(t *testing.T) {
	c := navmessage.NewCollector(storage.Small)
	svn, _ := gst.NewSvn(21)
	other, _ := gst.NewSvn(5)
	feedE21(t, c, gst.New(1176, 120990))
	// Advance one subframe; the copied slot now has age 1, so a tag
	// with COP = 1 cannot use it (max age + 1 = 2 > 1).
	dummyWord := make([]byte, navmessage.InavWordBytes)
	c.Feed(dummyWord, other, gst.New(1176, 121020), navmessage.BandE1B)

	key := e21Key(t)
	mack := tesla.ForceValidMack(bitfields.NewMack(mackWithTag0(t, "8f54588871", 1), 128, 40))
	c.ProcessMack(mack, key, svn, gst.New(1176, 121050), bitfields.NmaTest)

	if _, ok := c.GetCedAndStatus(svn); ok {
		t.Fatal("COP gating should have prevented authentication")
	}
}

func TestDontUseReset(t *testing.T) {
	c := navmessage.NewCollector(storage.Small)
	svn, _ := gst.NewSvn(21)
	feedE21(t, c, gst.New(1176, 121020))

	key := e21Key(t)
	mack := tesla.ForceValidMack(bitfields.NewMack(mackWithTag0(t, "8f54588871", 1), 128, 40))
	c.ProcessMack(mack, key, svn, gst.New(1176, 121050), bitfields.NmaTest)
	if _, ok := c.GetCedAndStatus(svn); !ok {
		t.Fatal("data should be authenticated")
	}

	c.ResetAuthbits()
	if _, ok := c.GetCedAndStatus(svn); ok {
		t.Fatal("authentication bits should have been discarded")
	}
}

func TestSvnReassignmentResets(t *testing.T) {
	// With a single-satellite profile every feed reuses the same slot,
	// so a different SVN evicts the stored data.
	profile := storage.Profile{NumSats: 1, NavMessageDepth: 2, MackDepth: 1}
	c := navmessage.NewCollector(profile)
	svn21, _ := gst.NewSvn(21)
	svn22, _ := gst.NewSvn(22)
	g := gst.New(1176, 121020)

	feedE21(t, c, g)
	words := inavWords(t, navdataE21(t))
	c.Feed(words[0], svn22, g.AddSeconds(10), navmessage.BandE1B)

	key := e21Key(t)
	mack := tesla.ForceValidMack(bitfields.NewMack(mackWithTag0(t, "8f54588871", 1), 128, 40))
	c.ProcessMack(mack, key, svn21, gst.New(1176, 121050), bitfields.NmaTest)
	if _, ok := c.GetCedAndStatus(svn21); ok {
		t.Fatal("slot reassigned to another SVN should not hold E21 data")
	}
}
