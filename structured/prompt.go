package structured

import "strings"

// buildSystemPrompt 生成系统指令：唯一任务是输出符合 schema 的 JSON，
// schema 以缩进形式嵌入，禁止解释、额外文字与代码块围栏。
func buildSystemPrompt(schemaText string) string {
	var sb strings.Builder
	sb.WriteString("You are a helpful assistant that generates JSON data based on provided schemas.\n")
	sb.WriteString("You must ONLY output valid JSON that matches the schema exactly.\n")
	sb.WriteString("Do not include any explanation or additional text, and do not wrap the JSON in markdown code fences.\n")
	sb.WriteString("Generate JSON data matching exactly this schema:\n")
	sb.WriteString(schemaText)
	sb.WriteString("\n\nOutput only the JSON data, nothing else.")
	return sb.String()
}
