// Package prompts holds the prompt templates for every pipeline task and
// discussion role. Templates live in templates/ as embedded Markdown files
// and are rendered into types.Message slices ready to send to a provider.
//
// 中文提示词是刻意为之：分析输出（翻译、要点、报告）面向中文读者。
package prompts

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/xichengpro/SourceMind/types"
)

//go:embed templates/*.md
var templateFS embed.FS

var tmpl = template.Must(template.ParseFS(templateFS, "templates/*.md"))

// render executes the named template with data.
func render(name string, data any) string {
	var sb strings.Builder
	if err := tmpl.ExecuteTemplate(&sb, name, data); err != nil {
		// 模板在编译期嵌入且字段固定，执行失败属于编程错误
		panic(fmt.Sprintf("prompts: render %s: %v", name, err))
	}
	return sb.String()
}

// Translation 渲染摘要翻译提示词。
func Translation(text string) []types.Message {
	return []types.Message{
		types.NewUserMessage(render("translation.md", struct{ Text string }{text})),
	}
}

// Glossary 渲染术语表提取提示词（全文翻译的第一步）。
func Glossary(text string) []types.Message {
	return []types.Message{
		types.NewUserMessage(render("glossary.md", struct{ Text string }{text})),
	}
}

// FullTranslation 渲染带术语表的分块翻译提示词。
func FullTranslation(glossary, text string) []types.Message {
	return []types.Message{
		types.NewUserMessage(render("full_translation.md", struct {
			Glossary string
			Text     string
		}{glossary, text})),
	}
}

// KeyPoints 渲染核心要点提取提示词。
func KeyPoints(text string) []types.Message {
	return []types.Message{
		types.NewUserMessage(render("key_points.md", struct{ Text string }{text})),
	}
}

// Experiments 渲染实验信息提取提示词。
func Experiments(text string) []types.Message {
	return []types.Message{
		types.NewUserMessage(render("experiments.md", struct{ Text string }{text})),
	}
}

// Terms 渲染关键术语解释提示词。
func Terms(text string) []types.Message {
	return []types.Message{
		types.NewUserMessage(render("terms.md", struct{ Text string }{text})),
	}
}

// RelatedWork 渲染相关工作情报汇总提示词。
func RelatedWork(title, searchResults string) []types.Message {
	return []types.Message{
		types.NewUserMessage(render("related_work.md", struct {
			Title         string
			SearchResults string
		}{title, searchResults})),
	}
}

// ReportInput 汇总报告生成所需的多源输入。
type ReportInput struct {
	Source      string
	Translation string
	KeyPoints   string
	Experiments string
	Terms       string
	RelatedWork string
}

// Report 渲染最终研读报告提示词。
func Report(in ReportInput) []types.Message {
	return []types.Message{
		types.NewUserMessage(render("report.md", in)),
	}
}

// VLMPage 渲染扫描页转写提示词，图片以 base64 内容块附带。
func VLMPage(imageBase64 string) []types.Message {
	instruction := render("vlm_page.md", nil)
	return []types.Message{
		types.NewSystemMessage("You are a specialized academic paper parser. Your goal is to transcribe the provided image of a PDF page into high-quality Markdown."),
		types.NewUserMessage(instruction).WithImages([]types.ImageContent{{
			Type: "base64",
			Data: imageBase64,
		}}),
	}
}

// Moderator 渲染圆桌主持人提示词。
func Moderator(title, statusDescription, input string) []types.Message {
	return []types.Message{
		types.NewSystemMessage(render("moderator.md", struct {
			Title             string
			StatusDescription string
		}{title, statusDescription})),
		types.NewUserMessage(input),
	}
}

// Critic 渲染方法论评审员提示词。
func Critic(reportContent, input string) []types.Message {
	return []types.Message{
		types.NewSystemMessage(render("critic.md", struct{ ReportContent string }{reportContent})),
		types.NewUserMessage(input),
	}
}

// Practitioner 渲染工程实践评审员提示词。
func Practitioner(reportContent, input string) []types.Message {
	return []types.Message{
		types.NewSystemMessage(render("practitioner.md", struct{ ReportContent string }{reportContent})),
		types.NewUserMessage(input),
	}
}

// Author 渲染圆桌模式的作者提示词（携带论文全文）。
func Author(docContent, input string) []types.Message {
	return []types.Message{
		types.NewSystemMessage(render("author.md", struct{ DocContent string }{docContent})),
		types.NewUserMessage(input),
	}
}

// Reader 渲染对话模式的读者提示词。
func Reader(input string) []types.Message {
	return []types.Message{
		types.NewSystemMessage(render("reader.md", nil)),
		types.NewUserMessage(input),
	}
}

// SimpleAuthor 渲染对话模式的作者提示词。
func SimpleAuthor(docContent, input string) []types.Message {
	return []types.Message{
		types.NewSystemMessage(render("simple_author.md", struct{ DocContent string }{docContent})),
		types.NewUserMessage(input),
	}
}

// QA 渲染追问问答提示词，基于论文内容回答用户提问。
func QA(docContent, question string) []types.Message {
	return []types.Message{
		types.NewUserMessage(render("qa.md", struct {
			DocContent string
			Question   string
		}{docContent, question})),
	}
}
