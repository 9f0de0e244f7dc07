package app_test

import (
	"errors"
	"reflect"
	"strconv"
	"sync"
	"testing"
	"time"

	"career-check-service/internal/app"
	"career-check-service/internal/domain"
)

func TestSessionScenarioCTransitions(t *testing.T) {
	session := app.NewSession("s1", threeQuestionBank(t), 3)

	var screens []string
	record := func(v domain.View) {
		screens = append(screens, string(v.Screen)+":"+strconv.Itoa(v.Index))
	}
	record(session.View())

	view, err := session.Start()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	record(view)
	for i := 0; i < 3; i++ {
		view, err = session.Answer(domain.AnswerYes)
		if err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
		record(view)
	}

	want := []string{"landing:0", "asking:0", "asking:1", "asking:2", "result:3"}
	if !reflect.DeepEqual(screens, want) {
		t.Fatalf("expected %v, got %v", want, screens)
	}

	before := session.Scores()
	view, err = session.Answer(domain.AnswerYes)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if view.Screen != domain.ScreenResult {
		t.Fatalf("rejected answer must keep the result screen, got %s", view.Screen)
	}
	if !reflect.DeepEqual(before, session.Scores()) {
		t.Fatalf("rejected answer changed scores")
	}
}

func TestSessionScenarioAResult(t *testing.T) {
	session := app.NewSession("s1", twoQuestionBank(t), 1)
	mustStart(t, session)
	_, _ = session.Answer(domain.AnswerYes)
	view, err := session.Answer(domain.AnswerYes)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}

	if !reflect.DeepEqual(session.Scores(), domain.ScoreState{"x": 2, "y": 3}) {
		t.Fatalf("unexpected scores %v", session.Scores())
	}
	wantRanking := []domain.RankedEntry{
		{Role: "y", RawScore: 3, NormalizedScore: 100},
		{Role: "x", RawScore: 2, NormalizedScore: 67},
	}
	if !reflect.DeepEqual(view.Ranking, wantRanking) {
		t.Fatalf("expected %+v, got %+v", wantRanking, view.Ranking)
	}
	if len(view.Highlights) != 1 || view.Highlights[0].Label != "Role Y" || view.Highlights[0].Rank != 1 {
		t.Fatalf("expected top-1 highlight for Role Y, got %+v", view.Highlights)
	}
	if len(view.Highlights[0].NextSteps) != 1 {
		t.Fatalf("expected next steps from profile, got %+v", view.Highlights[0])
	}
	if view.Progress != 100 || view.Question != nil {
		t.Fatalf("unexpected result view %+v", view)
	}
	// y reached 3 of the 4 points any single role could earn.
	if view.MatchRate != 75 {
		t.Fatalf("expected match rate 75, got %d", view.MatchRate)
	}
}

func TestSessionScenarioBNoAndSkip(t *testing.T) {
	session := app.NewSession("s1", twoQuestionBank(t), 3)
	mustStart(t, session)
	_, _ = session.Answer(domain.AnswerNo)
	view, _ := session.Answer(domain.AnswerSkip)

	want := []domain.RankedEntry{{Role: "x"}, {Role: "y"}}
	if !reflect.DeepEqual(view.Ranking, want) {
		t.Fatalf("expected %+v, got %+v", want, view.Ranking)
	}
	if view.MatchRate != 0 {
		t.Fatalf("expected match rate 0, got %d", view.MatchRate)
	}
	if got := session.Answers(); !reflect.DeepEqual(got, []domain.AnswerValue{domain.AnswerNo, domain.AnswerSkip}) {
		t.Fatalf("unexpected answer record %v", got)
	}
}

func TestSessionScoresAreMonotonic(t *testing.T) {
	bank := threeQuestionBank(t)
	session := app.NewSession("s1", bank, 3)
	mustStart(t, session)

	prev := session.Scores()
	for _, answer := range []domain.AnswerValue{domain.AnswerYes, domain.AnswerNo, domain.AnswerYes} {
		if _, err := session.Answer(answer); err != nil {
			t.Fatalf("answer: %v", err)
		}
		next := session.Scores()
		for _, role := range bank.Roles() {
			if next[role] < prev[role] {
				t.Fatalf("score for %s decreased: %d -> %d", role, prev[role], next[role])
			}
		}
		prev = next
	}
}

func TestSessionRetryResetsScores(t *testing.T) {
	session := app.NewSession("s1", twoQuestionBank(t), 3)
	mustStart(t, session)
	_, _ = session.Answer(domain.AnswerYes)
	_, _ = session.Answer(domain.AnswerYes)

	view, err := session.Retry()
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if view.Screen != domain.ScreenAsking || view.Index != 0 {
		t.Fatalf("expected first question after retry, got %s:%d", view.Screen, view.Index)
	}
	if !reflect.DeepEqual(session.Scores(), domain.ScoreState{"x": 0, "y": 0}) {
		t.Fatalf("expected zero scores after retry, got %v", session.Scores())
	}
	if len(session.Answers()) != 0 || view.Ranking != nil {
		t.Fatalf("retry must clear answers and ranking")
	}
}

func TestSessionRejectsInvalidTransitions(t *testing.T) {
	session := app.NewSession("s1", twoQuestionBank(t), 3)

	if _, err := session.Answer(domain.AnswerYes); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("answer on landing: expected invalid transition, got %v", err)
	}
	if _, err := session.Retry(); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("retry on landing: expected invalid transition, got %v", err)
	}
	mustStart(t, session)
	if _, err := session.Start(); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("start while asking: expected invalid transition, got %v", err)
	}
	if _, err := session.Answer("maybe"); !errors.Is(err, domain.ErrInvalidAnswer) {
		t.Fatalf("expected invalid answer, got %v", err)
	}
	if view := session.View(); view.Screen != domain.ScreenAsking || view.Index != 0 {
		t.Fatalf("rejected calls must not move the session, got %s:%d", view.Screen, view.Index)
	}
}

func TestSessionBackToLandingDiscardsRun(t *testing.T) {
	session := app.NewSession("s1", twoQuestionBank(t), 3)
	mustStart(t, session)
	_, _ = session.Answer(domain.AnswerYes)

	view := session.BackToLanding()
	if view.Screen != domain.ScreenLanding || view.Lead != "Two quick questions." {
		t.Fatalf("expected landing view, got %+v", view)
	}
	view = mustStart(t, session)
	if view.Index != 0 || session.Scores()["x"] != 0 {
		t.Fatalf("expected a fresh run after landing, got index %d scores %v", view.Index, session.Scores())
	}
}

func TestSessionAnswerAtIgnoresStaleClicks(t *testing.T) {
	session := app.NewSession("s1", twoQuestionBank(t), 3)
	mustStart(t, session)

	if _, err := session.AnswerAt(0, domain.AnswerYes); err != nil {
		t.Fatalf("answer at 0: %v", err)
	}
	// Second click on the same button lands after the session moved on.
	view, err := session.AnswerAt(0, domain.AnswerYes)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected stale answer rejected, got %v", err)
	}
	if view.Index != 1 || session.Scores()["y"] != 1 {
		t.Fatalf("stale answer must not apply, got index %d scores %v", view.Index, session.Scores())
	}
}

func TestSessionConcurrentAnswersApplyOnce(t *testing.T) {
	bank := threeQuestionBank(t)
	session := app.NewSession("s1", bank, 3)
	mustStart(t, session)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := session.Answer(domain.AnswerYes); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	rejected := 0
	for err := range errs {
		if !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("unexpected error %v", err)
		}
		rejected++
	}
	if rejected != 7 {
		t.Fatalf("expected 7 rejected answers, got %d", rejected)
	}
	if got := len(session.Answers()); got != 3 {
		t.Fatalf("expected exactly 3 applied answers, got %d", got)
	}
	if session.Scores()["a"] != 3 {
		t.Fatalf("expected each question applied once, got %v", session.Scores())
	}
}

func TestSessionSubscribeReceivesTransitions(t *testing.T) {
	session := app.NewSession("s1", twoQuestionBank(t), 3)
	ch, cancel := session.Subscribe()
	defer cancel()

	if initial := <-ch; initial.Screen != domain.ScreenLanding {
		t.Fatalf("expected landing snapshot, got %s", initial.Screen)
	}
	mustStart(t, session)
	select {
	case update := <-ch:
		if update.Screen != domain.ScreenAsking || update.Question == nil || update.Question.Text != "first" {
			t.Fatalf("unexpected update %+v", update)
		}
	case <-time.After(time.Second):
		t.Fatalf("no update after start")
	}
}

func TestSessionSubscribeDuringTransitionEndsOnLatestView(t *testing.T) {
	bank := twoQuestionBank(t)
	for i := 0; i < 2000; i++ {
		session := app.NewSession("s1", bank, 3)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = session.Start()
		}()
		ch, cancel := session.Subscribe()
		wg.Wait()

		var last domain.View
	drain:
		for {
			select {
			case last = <-ch:
			default:
				break drain
			}
		}
		cancel()

		if want := session.View().Screen; last.Screen != want {
			t.Fatalf("run %d: last delivered view is %s, session is on %s", i, last.Screen, want)
		}
	}
}

func TestSessionProgress(t *testing.T) {
	session := app.NewSession("s1", threeQuestionBank(t), 3)
	mustStart(t, session)
	view, _ := session.Answer(domain.AnswerNo)
	if view.Progress != 33 || view.Total != 3 {
		t.Fatalf("expected 33%% of 3, got %d%% of %d", view.Progress, view.Total)
	}
}

func mustStart(t *testing.T, session *app.Session) domain.View {
	t.Helper()
	view, err := session.Start()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return view
}

func twoQuestionBank(t *testing.T) *domain.QuestionBank {
	t.Helper()
	bank, err := domain.NewQuestionBank(domain.BankDocument{
		ID:    "xy",
		Title: "XY",
		Lead:  "Two quick questions.",
		Roles: []domain.RoleProfile{
			{Role: "x", Label: "Role X"},
			{Role: "y", Label: "Role Y", NextSteps: []string{"shadow a Y for a day"}},
		},
		Questions: []domain.Question{
			{Text: "first", Weights: map[domain.Role]int{"x": 2, "y": 1}},
			{Text: "second", Weights: map[domain.Role]int{"y": 2}},
		},
	})
	if err != nil {
		t.Fatalf("new bank: %v", err)
	}
	return bank
}

func threeQuestionBank(t *testing.T) *domain.QuestionBank {
	t.Helper()
	bank, err := domain.NewQuestionBank(domain.BankDocument{
		ID:    "abc",
		Roles: []domain.RoleProfile{{Role: "a"}, {Role: "b"}, {Role: "c"}},
		Questions: []domain.Question{
			{Text: "one", Weights: map[domain.Role]int{"a": 1, "b": 2}},
			{Text: "two", Weights: map[domain.Role]int{"a": 1, "c": 1}},
			{Text: "three", Weights: map[domain.Role]int{"a": 1}},
		},
	})
	if err != nil {
		t.Fatalf("new bank: %v", err)
	}
	return bank
}
