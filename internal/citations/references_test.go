package citations

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []Reference
	}{
		{
			name: "usccb uppercase with suffix",
			text: "MT 5:1-12A",
			expected: []Reference{
				{Original: "MT 5:1-12A", Book: "Mt", BookName: "Mátthêu", Chapter: 5, VerseStart: 1, VerseEnd: 12, Known: true},
			},
		},
		{
			name: "full book name in sentence",
			text: "Today's Gospel reading is from Matthew 5:3-8",
			expected: []Reference{
				{Original: "Matthew 5:3-8", Book: "Mt", BookName: "Mátthêu", Chapter: 5, VerseStart: 3, VerseEnd: 8, Known: true},
			},
		},
		{
			name: "single verse",
			text: "Gospel: John 3:16",
			expected: []Reference{
				{Original: "John 3:16", Book: "Ga", BookName: "Gioan", Chapter: 3, VerseStart: 16, VerseEnd: 16, Known: true},
			},
		},
		{
			name: "numbered book",
			text: "1 Corinthians 13:4-8 speaks about love",
			expected: []Reference{
				{Original: "1 Corinthians 13:4-8", Book: "1Cr", BookName: "1 Côrintô", Chapter: 13, VerseStart: 4, VerseEnd: 8, Known: true},
			},
		},
		{
			name: "comma form and en dash",
			text: "Mark 1, 14–20",
			expected: []Reference{
				{Original: "Mark 1, 14–20", Book: "Mc", BookName: "Máccô", Chapter: 1, VerseStart: 14, VerseEnd: 20, Known: true},
			},
		},
		{
			name: "several references",
			text: "First Reading: Genesis 1:1-5, Psalm 23:1-6",
			expected: []Reference{
				{Original: "Genesis 1:1-5", Book: "St", BookName: "Sáng Thế", Chapter: 1, VerseStart: 1, VerseEnd: 5, Known: true},
				{Original: "Psalm 23:1-6", Book: "Tv", BookName: "Thánh Vịnh", Chapter: 23, VerseStart: 1, VerseEnd: 6, Known: true},
			},
		},
		{
			name: "unknown book kept as written",
			text: "Sirach 2:1",
			expected: []Reference{
				{Original: "Sirach 2:1", Book: "Sirach", Chapter: 2, VerseStart: 1, VerseEnd: 1},
			},
		},
		{
			name:     "no reference",
			text:     "Blessed are the poor in spirit",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refs := Parse(tt.text)
			if len(refs) != len(tt.expected) {
				t.Fatalf("Expected %d references, got %d: %+v", len(tt.expected), len(refs), refs)
			}
			for i, ref := range refs {
				if ref != tt.expected[i] {
					t.Errorf("Reference %d:\n got  %+v\n want %+v", i, ref, tt.expected[i])
				}
			}
		})
	}
}

func TestReferenceString(t *testing.T) {
	ref, ok := First("LK 6:20-26")
	if !ok {
		t.Fatal("Expected a reference")
	}
	if ref.String() != "Lc 6:20-26" {
		t.Errorf("Expected 'Lc 6:20-26', got %q", ref.String())
	}

	ref, _ = First("Jn 3:16")
	if ref.String() != "Ga 3:16" {
		t.Errorf("Expected 'Ga 3:16', got %q", ref.String())
	}
}

func TestNormalizeBook(t *testing.T) {
	tests := []struct {
		name  string
		short string
		long  string
		ok    bool
	}{
		{"Matthew", "Mt", "Mátthêu", true},
		{"mk.", "Mc", "Máccô", true},
		{"1cor", "1Cr", "1 Côrintô", true},
		{"2  Tim", "2Tm", "2 Timôthê", true},
		{"Hezekiah", "", "", false},
	}

	for _, tt := range tests {
		short, long, ok := NormalizeBook(tt.name)
		if short != tt.short || long != tt.long || ok != tt.ok {
			t.Errorf("NormalizeBook(%q) = %q, %q, %v; want %q, %q, %v", tt.name, short, long, ok, tt.short, tt.long, tt.ok)
		}
	}
}
