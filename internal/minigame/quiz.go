package minigame

import (
	"fmt"

	"kotoba-quest/internal/combat"
	"kotoba-quest/internal/content"
	"kotoba-quest/internal/input"
)

// Quiz shows one word and four English meanings. A wrong pick ends the game as a miss.
type Quiz struct {
	timer
	choices []content.Word
	answer  int
	cursor  int
	picked  int
}

// QuizView is the client-facing quiz state
type QuizView struct {
	Prompt  string   `json:"prompt"`
	Reading string   `json:"reading"`
	Choices []string `json:"choices"`
	Cursor  int      `json:"cursor"`
	Picked  int      `json:"picked"`           // -1 until answered
	Answer  *int     `json:"answer,omitempty"` // revealed once done
}

func newQuiz(pool []content.Word, rng Shuffler, cfg combat.TimerConfig, clock Clock, report Reporter) *Quiz {
	choices := sample(rng, pool, QuizChoices)
	return &Quiz{
		timer:   newTimer(combat.MiniGameQuiz, cfg, clock, report),
		choices: choices,
		answer:  rng.Intn(len(choices)),
		picked:  -1,
	}
}

// Answer picks choice i
func (q *Quiz) Answer(i int) error {
	if q.done {
		return ErrFinished
	}
	if i < 0 || i >= len(q.choices) {
		return fmt.Errorf("%w: choice %d", ErrBadMove, i)
	}
	q.picked = i
	q.cursor = i
	if i == q.answer {
		q.succeed()
	} else {
		q.fail()
	}
	return nil
}

// HandleAction moves the cursor and confirms the highlighted choice
func (q *Quiz) HandleAction(a input.Action) bool {
	if q.done {
		return false
	}
	switch a.Kind {
	case input.KindNavigate:
		switch a.Dir {
		case input.DirUp, input.DirLeft:
			q.cursor = step(q.cursor, -1, len(q.choices))
		case input.DirDown, input.DirRight:
			q.cursor = step(q.cursor, 1, len(q.choices))
		}
		return true
	case input.KindConfirm:
		return q.Answer(q.cursor) == nil
	}
	return false
}

// View returns the quiz state
func (q *Quiz) View() View {
	v := q.view()
	qv := &QuizView{
		Prompt:  q.choices[q.answer].Display(),
		Reading: q.choices[q.answer].Kana,
		Choices: make([]string, len(q.choices)),
		Cursor:  q.cursor,
		Picked:  q.picked,
	}
	for i, w := range q.choices {
		qv.Choices[i] = w.English
	}
	if v.Done {
		ans := q.answer
		qv.Answer = &ans
	}
	v.Quiz = qv
	return v
}

// Words returns the words shown
func (q *Quiz) Words() []content.Word {
	return []content.Word{q.choices[q.answer]}
}
