package llm

import (
	"fmt"
	"strings"

	"DataPaperIndex/internal/domain"
)

const (
	translatorRole = "你是一位专业的科研文献翻译与解读助手"
	classifierRole = "你是一位专业的科研文献分类助手。"
)

type template struct {
	system      string
	instruction string
}

var templates = map[domain.Task]template{
	domain.TaskTranslate: {
		system:      translatorRole,
		instruction: "将以下英文论文标题翻译成简洁的学术中文，保持专业术语准确性，仅返回翻译结果，不要添加任何说明或注释：\n%s",
	},
	domain.TaskInterpret: {
		system:      translatorRole,
		instruction: "基于以下论文描述，提供一段70-90字的简洁学术性中文总结，聚焦数据集的制作过程和潜在应用价值，采用适合研究人员的正式语气，仅返回总结内容，不要添加任何说明或注释：\n%s",
	},
	domain.TaskGenerateTags: {
		system:      translatorRole,
		instruction: "基于以下论文描述，为这篇科研数据论文生成3-5个简洁的中文标签，使用逗号分隔，适合学术分类，仅返回标签内容，不要添加任何说明或注释：\n%s",
	},
	domain.TaskClassify: {
		system: classifierRole,
		instruction: "请根据以下论文信息（优先参考摘要，其次是标题），从下列预定义的分类 (Subject) 中选择一个最相关的类别：[" +
			strings.Join(domain.Subjects, ", ") +
			"]。请仅返回最合适的中文类别名称，不要添加任何说明、标点或注释。\n\n论文信息：\n%s",
	},
}

func buildPrompt(task domain.Task, text string) (string, string, error) {
	tpl, ok := templates[task]
	if !ok {
		return "", "", fmt.Errorf("unknown task %q", task)
	}
	return tpl.system, fmt.Sprintf(tpl.instruction, text), nil
}
