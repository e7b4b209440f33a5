package intake

import "strings"

// FieldKind tells how a profile field is answered.
type FieldKind int

const (
	// FieldText accepts any non-empty free-text reply.
	FieldText FieldKind = iota
	// FieldChoice accepts only a button selection, unless a freeform option was picked.
	FieldChoice
)

// Option is one button of a choice field.
type Option struct {
	Label string
	Value string
	// Freeform switches the field to a one-shot free-text answer.
	Freeform bool
}

// Field is one step of the profile intake.
type Field struct {
	Key     string
	Label   string
	Prompt  string
	Kind    FieldKind
	Options []Option
}

// Profile field keys.
const (
	KeyName   = "pet_name"
	KeyType   = "pet_type"
	KeyBreed  = "pet_breed"
	KeyAge    = "pet_age"
	KeyGender = "pet_gender"
	KeyWeight = "pet_weight"
)

// CustomValue is the option value that asks for a typed answer.
const CustomValue = "custom"

// Fields is the ordered intake form.
var Fields = []Field{
	{Key: KeyName, Label: "Name", Prompt: "What is your pet's name?", Kind: FieldText},
	{Key: KeyType, Label: "Type", Prompt: "Is {name} a dog or a cat?", Kind: FieldChoice, Options: []Option{
		{Label: "🐶 Dog", Value: "Dog"},
		{Label: "🐱 Cat", Value: "Cat"},
	}},
	{Key: KeyBreed, Label: "Breed", Prompt: "What breed is {name}? (\"mixed\" or \"unknown\" is fine)", Kind: FieldText},
	{Key: KeyAge, Label: "Age", Prompt: "How old is {name}?", Kind: FieldChoice, Options: []Option{
		{Label: "Under 1 year", Value: "Under 1 year"},
		{Label: "1-3 years", Value: "1-3 years"},
		{Label: "4-7 years", Value: "4-7 years"},
		{Label: "8+ years", Value: "8+ years"},
		{Label: "✏️ Type exact age", Value: CustomValue, Freeform: true},
	}},
	{Key: KeyGender, Label: "Gender", Prompt: "Is {name} male or female?", Kind: FieldChoice, Options: []Option{
		{Label: "♂ Male", Value: "Male"},
		{Label: "♀ Female", Value: "Female"},
	}},
	{Key: KeyWeight, Label: "Weight", Prompt: "Roughly how much does {name} weigh? (e.g. 12 kg)", Kind: FieldText},
}

var fieldKeys = func() []string {
	keys := make([]string, len(Fields))
	for i, f := range Fields {
		keys[i] = f.Key
	}
	return keys
}()

// FieldKeys lists the keys of Fields in order.
func FieldKeys() []string {
	return append([]string(nil), fieldKeys...)
}

// FieldIndex returns the position of key in Fields or -1.
func FieldIndex(key string) int {
	for i, f := range Fields {
		if f.Key == key {
			return i
		}
	}
	return -1
}

// FirstMissing returns the index of the first empty field, or len(Fields) when complete.
func FirstMissing(profile map[string]string) int {
	for i, f := range Fields {
		if strings.TrimSpace(profile[f.Key]) == "" {
			return i
		}
	}
	return len(Fields)
}

func (f Field) option(value string) (Option, bool) {
	for _, o := range f.Options {
		if o.Value == value {
			return o, true
		}
	}
	return Option{}, false
}

func (f Field) prompt(profile map[string]string) string {
	name := strings.TrimSpace(profile[KeyName])
	if name == "" {
		name = "your pet"
	}
	return strings.ReplaceAll(f.Prompt, "{name}", name)
}
