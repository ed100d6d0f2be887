package mobi

// primaryLanguages maps the low byte of a MOBI locale (the Windows primary
// language ID) to a BCP 47 language tag.
var primaryLanguages = map[uint32]string{
	0x01: "ar", 0x02: "bg", 0x03: "ca", 0x04: "zh", 0x05: "cs",
	0x06: "da", 0x07: "de", 0x08: "el", 0x09: "en", 0x0A: "es",
	0x0B: "fi", 0x0C: "fr", 0x0D: "he", 0x0E: "hu", 0x0F: "is",
	0x10: "it", 0x11: "ja", 0x12: "ko", 0x13: "nl", 0x14: "no",
	0x15: "pl", 0x16: "pt", 0x17: "rm", 0x18: "ro", 0x19: "ru",
	0x1A: "hr", 0x1B: "sk", 0x1C: "sq", 0x1D: "sv", 0x1E: "th",
	0x1F: "tr", 0x20: "ur", 0x21: "id", 0x22: "uk", 0x23: "be",
	0x24: "sl", 0x25: "et", 0x26: "lv", 0x27: "lt", 0x29: "fa",
	0x2A: "vi", 0x2B: "hy", 0x2C: "az", 0x2D: "eu", 0x2F: "mk",
	0x36: "af", 0x37: "ka", 0x38: "fo", 0x39: "hi", 0x3E: "ms",
	0x41: "sw", 0x43: "uz", 0x45: "bn", 0x46: "pa", 0x47: "gu",
	0x49: "ta", 0x4A: "te", 0x4B: "kn", 0x4C: "ml", 0x4E: "mr",
	0x4F: "sa",
}

// regionalLanguages maps full locale codes whose region is significant.
// Codes absent here resolve to their primary language alone.
var regionalLanguages = map[uint32]string{
	0x0809: "en-GB", // English (UK)
	0x0C09: "en-AU", // English (Australia)
	0x1009: "en-CA", // English (Canada)
	0x1409: "en-NZ", // English (New Zealand)
	0x1809: "en-IE", // English (Ireland)
	0x0416: "pt-BR", // Portuguese (Brazil)
	0x0816: "pt-PT", // Portuguese (Portugal)
	0x0804: "zh-CN", // Chinese (Simplified)
	0x0404: "zh-TW", // Chinese (Traditional)
	0x0C04: "zh-HK", // Chinese (Hong Kong)
	0x1004: "zh-SG", // Chinese (Singapore)
	0x080A: "es-MX", // Spanish (Mexico)
	0x0C0C: "fr-CA", // French (Canada)
	0x080C: "fr-BE", // French (Belgium)
	0x100C: "fr-CH", // French (Switzerland)
	0x0807: "de-CH", // German (Switzerland)
	0x0C07: "de-AT", // German (Austria)
	0x0813: "nl-BE", // Dutch (Belgium)
}

// LanguageTag converts a packed MOBI locale code to a BCP 47 language tag.
// Returns an empty string for unknown codes.
func LanguageTag(code uint32) string {
	if tag, ok := regionalLanguages[code&0xFFFF]; ok {
		return tag
	}
	return primaryLanguages[code&0xFF]
}
