package taxonomy

// DefaultLists is the built-in address policy for Thai-language call transcripts.
var DefaultLists = Lists{
	Forbidden: "พี่",
	FamilyAddress: []string{
		"ลุง",
		"ป้า",
		"น้า",
		"อา",
	},
	MonkAddress: []string{
		"ท่าน",
		"พระคุณเจ้า",
	},
	MonkSelfReference: []string{
		"หลวงพี่",
		"หลวงพ่อ",
		"อาตมา",
	},
	Prefixes: []string{
		"คุณ",
	},
	Negation: "ไม่ใช่",
}
