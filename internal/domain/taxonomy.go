package domain

import "strings"

// Task enumerates the derivations requested from the language model.
type Task string

const (
	TaskTranslate    Task = "translate"
	TaskInterpret    Task = "interpret"
	TaskGenerateTags Task = "generate_tags"
	TaskClassify     Task = "classify"
)

// SubjectOther is the catch-all bucket of the closed taxonomy.
const SubjectOther = "其他"

// Subjects is the closed subject taxonomy, catch-all last.
var Subjects = []string{
	"生物技术",
	"气候科学",
	"计算生物学与生物信息学",
	"疾病",
	"生态学",
	"工程学",
	"环境科学",
	"环境社会科学",
	"遗传学",
	"医疗保健",
	"水文学",
	"数学与计算",
	"医学研究",
	"微生物学",
	"神经科学",
	"海洋科学",
	"植物科学",
	"科学界",
	"社会科学",
	"动物学",
	SubjectOther,
}

const subjectPunctuation = " \t\r\n,.;:!?，。；：！？、\"'“”‘’"

// IsSubject reports whether s belongs to the closed taxonomy.
func IsSubject(s string) bool {
	for _, subject := range Subjects {
		if subject == s {
			return true
		}
	}
	return false
}

// CoerceSubject maps raw model output onto the closed taxonomy. The second
// return value is false when the catch-all had to be assigned. Empty input
// stays empty so the field remains eligible for repair.
func CoerceSubject(raw string) (string, bool) {
	cleaned := strings.Trim(raw, subjectPunctuation)
	if cleaned == "" {
		return "", true
	}
	if IsSubject(cleaned) {
		return cleaned, true
	}
	for _, subject := range Subjects {
		if strings.Contains(cleaned, subject) || strings.Contains(subject, cleaned) {
			return subject, true
		}
	}
	return SubjectOther, false
}
