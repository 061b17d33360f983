package otogi

import "testing"

func TestValidateTextEntities(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		entities []TextEntity
		wantErr  bool
	}{
		{
			name: "empty entities are valid",
			text: "hello",
		},
		{
			name:     "bold title",
			text:     "Fun (Page 1)\n\n/echo - Repeat",
			entities: []TextEntity{{Type: TextEntityTypeBold, Offset: 0, Length: 12}},
		},
		{
			name:     "offsets count runes",
			text:     "Ünïcode",
			entities: []TextEntity{{Type: TextEntityTypeItalic, Offset: 0, Length: 7}},
		},
		{
			name:     "text url requires url",
			text:     "click me",
			entities: []TextEntity{{Type: TextEntityTypeTextURL, Offset: 0, Length: 5}},
			wantErr:  true,
		},
		{
			name:     "range past end",
			text:     "hi",
			entities: []TextEntity{{Type: TextEntityTypeCode, Offset: 1, Length: 2}},
			wantErr:  true,
		},
		{
			name:     "missing type",
			text:     "hi",
			entities: []TextEntity{{Offset: 0, Length: 1}},
			wantErr:  true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateTextEntities(testCase.text, testCase.entities)
			if (err != nil) != testCase.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, testCase.wantErr)
			}
		})
	}
}
