package similarity

import "testing"

func fp(v int64) *int64 { return &v }

func TestSpanishTitlesMatchIgnoringOrder(t *testing.T) {
	r := New()
	a := Candidate{ID: 1, Name: "Silla Gamer Ergonómica Negra"}
	b := Candidate{ID: 2, Name: "Silla Ergonómica Gamer"}
	ev := r.Compare(a, b)
	if !ev.Textual || !ev.Same() {
		t.Fatalf("expected textual match, got %+v", ev)
	}
	if ev.HashDistance != nil {
		t.Fatal("expected no hash distance without fingerprints")
	}
}

func TestVisualThresholdBoundary(t *testing.T) {
	r := Resolver{VisualThreshold: 6, TextThreshold: 80, MinNameLength: 3}
	base := int64(0)
	atThreshold := int64(0b111111)
	aboveThreshold := int64(0b1111111)

	same := r.Compare(
		Candidate{ID: 1, Name: "Reloj Inteligente T500", Fingerprint: fp(base)},
		Candidate{ID: 2, Name: "Reloj Inteligente T500", Fingerprint: fp(atThreshold)},
	)
	if same.HashDistance == nil || *same.HashDistance != 6 || !same.Visual || !same.Same() {
		t.Fatalf("distance at threshold should match visually, got %+v", same)
	}

	different := r.Compare(
		Candidate{ID: 1, Name: "Licuadora industrial dos litros", Fingerprint: fp(base)},
		Candidate{ID: 3, Name: "Camiseta deportiva talla M", Fingerprint: fp(aboveThreshold)},
	)
	if *different.HashDistance != 7 || different.Visual {
		t.Fatalf("distance above threshold should not match visually, got %+v", different)
	}
	if different.TextSimilarity >= 80 || different.Same() {
		t.Fatalf("expected different products, got %+v", different)
	}
}

func TestVisualMatchAloneIsSufficient(t *testing.T) {
	r := New()
	a := Candidate{ID: 1, Name: "Audifonos M10", Fingerprint: fp(-42)}
	b := Candidate{ID: 2, Name: "Lampara solar recargable", Fingerprint: fp(-42)}
	if !r.AreSameProduct(a, b) {
		t.Fatal("identical fingerprints should match regardless of names")
	}
}

func TestMissingFingerprintDisablesVisualOnly(t *testing.T) {
	r := New()
	a := Candidate{ID: 1, Name: "Parlante Bluetooth Portatil", Fingerprint: fp(7)}
	b := Candidate{ID: 2, Name: "Parlante Portatil Bluetooth"}
	ev := r.Compare(a, b)
	if ev.HashDistance != nil || ev.Visual {
		t.Fatalf("expected visual signal disabled, got %+v", ev)
	}
	if !ev.Textual {
		t.Fatalf("expected textual signal to still apply, got %+v", ev)
	}
}

func TestShortNamesNeverMatchTextually(t *testing.T) {
	r := New()
	cases := [][2]string{{"", ""}, {"ab", "ab"}, {"✅ x", "x"}, {"-", "--"}}
	for _, c := range cases {
		ev := r.Compare(Candidate{ID: 1, Name: c[0]}, Candidate{ID: 2, Name: c[1]})
		if ev.Textual || ev.Same() {
			t.Fatalf("names %q/%q should not match, got %+v", c[0], c[1], ev)
		}
	}
}

func TestCompareIsSymmetric(t *testing.T) {
	r := New()
	a := Candidate{ID: 1, Name: "lampara led recargable solar", Fingerprint: fp(0x0f0f)}
	b := Candidate{ID: 2, Name: "lampara led recargable usb", Fingerprint: fp(0x0ff0)}
	ab, ba := r.Compare(a, b), r.Compare(b, a)
	if ab.TextSimilarity != ba.TextSimilarity || *ab.HashDistance != *ba.HashDistance || ab.Same() != ba.Same() {
		t.Fatalf("asymmetric evidence: %+v vs %+v", ab, ba)
	}
}
