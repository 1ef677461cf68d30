package discussion

import (
	"context"
	"fmt"

	"github.com/xichengpro/SourceMind/prompts"
	"github.com/xichengpro/SourceMind/types"
)

// 圆桌角色的展示标签
const (
	labelModerator        = "🎓 主持人 (Moderator)"
	labelModeratorClosing = "🎓 主持人 (Moderator - 总结)"
	labelCritic           = "⚔️ 方法论专家 (Critic)"
	labelCriticFollowUp   = "⚔️ 方法论专家 (Critic - 追问)"
	labelPractitioner     = "🛠️ 应用实践者 (Practitioner)"
	labelAuthor           = "🛡️ 论文作者 (Author)"
)

// runRoundtable 按固定议程驱动四角色圆桌辩论：
// 开场 → 方法论轮 → 落地应用轮 → 深度追问轮 → 总结。
// 主持人与两位评审员走评审模型，作者走核心模型。
func (e *Engine) runRoundtable(ctx context.Context, title, report, doc string) error {
	// ---- 开场 ----
	e.phase("### 🟢 会议开始 (Opening)")
	_, err := e.speak(ctx, "moderator", labelModerator, types.TaskReview,
		prompts.Moderator(title, "会议刚开始，需要进行开场介绍。",
			fmt.Sprintf("会议开始。请简要开场，介绍论文《%s》的核心贡献（基于摘要），并介绍嘉宾：论文作者、方法论专家（评审员 A）和应用实践者（评审员 B）。", title)))
	if err != nil {
		return err
	}

	// ---- 第一轮：方法论 ----
	e.phase("### 1️⃣ 第一轮：方法论探讨 (Round 1/3)")
	criticQ, err := e.speak(ctx, "critic", labelCritic, types.TaskReview,
		prompts.Critic(report,
			fmt.Sprintf("主持人邀请你（方法论专家）发言。请基于研读报告，针对论文的理论推导、算法或实验严谨性提出一个尖锐的问题。\n\n研读报告片段：\n%s", report)))
	if err != nil {
		return err
	}

	authorA1, err := e.speak(ctx, "author", labelAuthor, types.TaskCore,
		prompts.Author(doc,
			fmt.Sprintf("方法论专家提出了质疑：%s\n请基于论文内容进行有力反驳或解释。", criticQ)))
	if err != nil {
		return err
	}

	// ---- 第二轮：落地应用 ----
	e.phase("### 2️⃣ 第二轮：落地应用质疑 (Round 2/3)")
	practitionerQ, err := e.speak(ctx, "practitioner", labelPractitioner, types.TaskReview,
		prompts.Practitioner(report,
			fmt.Sprintf("主持人邀请你（应用实践者）发言。作者刚刚回答了方法论问题。请基于你的视角，针对落地的成本、难度或实际价值提出质疑。\n\n研读报告片段：\n%s", report)))
	if err != nil {
		return err
	}

	authorA2, err := e.speak(ctx, "author", labelAuthor, types.TaskCore,
		prompts.Author(doc,
			fmt.Sprintf("应用实践者提出了质疑：%s\n请基于论文内容进行回应，重点谈实际应用价值和成本。", practitionerQ)))
	if err != nil {
		return err
	}

	// ---- 第三轮：深度追问 ----
	e.phase("### 3️⃣ 第三轮：深度追问与总结 (Round 3/3)")
	_, err = e.speak(ctx, "moderator", labelModerator, types.TaskReview,
		prompts.Moderator(title, "进入自由辩论环节，需要指定一位评审员追问。",
			fmt.Sprintf("前两轮已结束。\n方法论专家问了：%s\n应用实践者问了：%s\n\n请总结争议点，并指定其中一位评审员（专家或实践者）进行深入追问。", criticQ, practitionerQ)))
	if err != nil {
		return err
	}

	criticQ2, err := e.speak(ctx, "critic", labelCriticFollowUp, types.TaskReview,
		prompts.Critic(report,
			fmt.Sprintf("主持人让你追问。作者之前的回答如下：\n1. %s\n2. %s\n\n请抓住其中一个逻辑漏洞或模糊点，进行终极追问。", authorA1, authorA2)))
	if err != nil {
		return err
	}

	authorA3, err := e.speak(ctx, "author", labelAuthor, types.TaskCore,
		prompts.Author(doc,
			fmt.Sprintf("方法论专家进行了追问：%s\n这是最后的回应机会，请做出精彩的总结性回答。", criticQ2)))
	if err != nil {
		return err
	}

	// ---- 总结 ----
	e.phase("### 🏁 会议结束 (Closing)")
	_, err = e.speak(ctx, "moderator", labelModeratorClosing, types.TaskReview,
		prompts.Moderator(title, "会议结束，需要进行总结和打分。",
			fmt.Sprintf("辩论结束。作者最后的回答是：%s\n\n请综合各方观点，对论文进行多维度技术总结（如创新点、工程可行性、算法完备性），并给出最终的“技术推荐等级”（如：强烈推荐、值得尝试、仅供参考）。", authorA3)))
	return err
}
