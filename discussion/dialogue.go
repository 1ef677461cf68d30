package discussion

import (
	"context"
	"fmt"

	"github.com/xichengpro/SourceMind/prompts"
	"github.com/xichengpro/SourceMind/types"
)

// 中文序数，读者追问时引用"第 N 个问题"
var ordinals = []string{"一", "二", "三", "四", "五", "六", "七", "八", "九", "十"}

func ordinal(n int) string {
	if n >= 1 && n <= len(ordinals) {
		return ordinals[n-1]
	}
	return fmt.Sprintf("%d", n)
}

var roundEmojis = []string{"1️⃣", "2️⃣", "3️⃣", "4️⃣", "5️⃣", "6️⃣", "7️⃣", "8️⃣", "9️⃣"}

func roundEmoji(n int) string {
	if n >= 1 && n <= len(roundEmojis) {
		return roundEmojis[n-1]
	}
	return fmt.Sprintf("%d.", n)
}

// 中间轮次循环使用的追问方向
var followUpHints = []string{
	"请基于此追问一个更深入或具体的问题。",
	"请基于此继续追问，或者询问该研究的局限性/应用场景。",
	"请基于此继续追问，例如关于未来发展方向或者潜在的缺陷。",
}

// runDialogue 驱动读者/作者多轮问答。前 N-1 轮读者提问、作者回答，
// 最后一轮读者总结并为报告易读性和论文启发性打分。
func (e *Engine) runDialogue(ctx context.Context, report, doc string) error {
	rounds := e.cfg.Rounds
	if rounds < 2 {
		rounds = 5
	}

	var lastAnswer string
	for round := 1; round < rounds; round++ {
		e.phase(fmt.Sprintf("### %s 第%s轮问答 (Round %d/%d)", roundEmoji(round), ordinal(round), round, rounds))

		var readerInput string
		if round == 1 {
			readerInput = fmt.Sprintf("我已经阅读了这份关于论文的报告。请基于报告内容，提出你最想问作者的一个核心问题，或者指出你觉得最难理解的一个概念。\n\n报告内容：\n%s", report)
		} else {
			hint := followUpHints[(round-2)%len(followUpHints)]
			readerInput = fmt.Sprintf("作者刚刚回答了你的第%s个问题。\n作者回答：%s\n\n%s", ordinal(round-1), lastAnswer, hint)
		}

		question, err := e.speak(ctx, "reader", fmt.Sprintf("👤 Reader (Q%d)", round), types.TaskReview,
			prompts.Reader(readerInput))
		if err != nil {
			return err
		}

		authorInput := fmt.Sprintf("读者追问：%s", question)
		if round == 1 {
			authorInput = fmt.Sprintf("读者提问：%s", question)
		}
		lastAnswer, err = e.speak(ctx, "author", fmt.Sprintf("🎓 Author (A%d)", round), types.TaskCore,
			prompts.SimpleAuthor(doc, authorInput))
		if err != nil {
			return err
		}
	}

	// ---- 最终点评 ----
	e.phase(fmt.Sprintf("### %s 最终点评 (Round %d/%d)", roundEmoji(rounds), rounds, rounds))
	_, err := e.speak(ctx, "reader", "👤 Reader (Final Feedback)", types.TaskReview,
		prompts.Reader(fmt.Sprintf("作者已经回答了你的所有问题。\n作者回答：%s\n\n请总结你对这篇论文的理解，并对这份报告的易读性（1-10分）和论文的启发性（1-10分）进行打分和点评。", lastAnswer)))
	return err
}
