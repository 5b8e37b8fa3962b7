package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"habit-tracker/internal/config"
	"habit-tracker/internal/model"
	"habit-tracker/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageDescription
	stageCategory
	stageGoalDays
)

const (
	cbProgressPrefix = "progress:"
	cbCompletePrefix = "complete:"
	cbReopenPrefix   = "reopen:"
	cbDeletePrefix   = "delete:"
)

const (
	btnSkip          = "⏭ Skip"
	btnCancelDialog  = "⏪ Cancel"
	menuLabelNewTask = "➕ New habit"
	menuLabelTasks   = "📋 Habits"
	menuLabelDone    = "🏁 Completed"
	menuLabelHelp    = "ℹ️ Help"
)

type conversationState struct {
	stage conversationStage
	// editID is non-zero when the dialog edits an existing task
	// instead of creating one.
	editID uint
	input  service.TaskInput
}

// Bot is the Telegram presentation layer. It talks to TaskService only
// and never reaches into the store.
type Bot struct {
	api           *tgbotapi.BotAPI
	taskSvc       *service.TaskService
	config        *config.Config
	conversations map[int64]*conversationState
	mu            sync.Mutex
}

func New(token string, taskSvc *service.TaskService, cfg *config.Config) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	return &Bot{
		api:           api,
		taskSvc:       taskSvc,
		config:        cfg,
		conversations: make(map[int64]*conversationState),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				log.Printf("handle callback: %v", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				log.Printf("handle message: %v", err)
			}
		}
	}

	return ctx.Err()
}

func (b *Bot) allowed(chatID int64) bool {
	return b.config == nil || b.config.AllowedChatID == 0 || b.config.AllowedChatID == chatID
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil || !b.allowed(msg.Chat.ID) {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Dialog cancelled.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "I didn't get that. Use /new to add a habit or /help for the command list.")
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	switch strings.TrimSpace(msg.Text) {
	case menuLabelNewTask:
		return true, b.startNewTaskConversation(msg)
	case menuLabelTasks:
		return true, b.sendTaskList(ctx, msg.Chat.ID, model.StatusInProgress)
	case menuLabelDone:
		return true, b.sendTaskList(ctx, msg.Chat.ID, model.StatusCompleted)
	case menuLabelHelp:
		return true, b.handleHelp(msg)
	}
	return false, nil
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(msg)
	case "help":
		return b.handleHelp(msg)
	case "new":
		return b.startNewTaskConversation(msg)
	case "tasks":
		return b.sendTaskList(ctx, msg.Chat.ID, model.StatusInProgress)
	case "completed":
		return b.sendTaskList(ctx, msg.Chat.ID, model.StatusCompleted)
	case "done":
		return b.handleDone(ctx, msg)
	case "edit":
		return b.startEditConversation(ctx, msg)
	case "complete":
		return b.withTaskID(msg, func(id uint) error {
			return b.statusChange(ctx, msg.Chat.ID, id, model.StatusCompleted)
		})
	case "reopen":
		return b.withTaskID(msg, func(id uint) error {
			return b.statusChange(ctx, msg.Chat.ID, id, model.StatusInProgress)
		})
	case "delete":
		return b.withTaskID(msg, func(id uint) error {
			return b.deleteTask(ctx, msg.Chat.ID, id)
		})
	case "cancel":
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Dialog cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}

	text := fmt.Sprintf(
		"👋 Hi, %s!\n<b>I track your habits and streaks.</b>\n\nCommands:\n"+
			"• /new — add a habit\n"+
			"• /tasks — list active habits\n"+
			"• /done &lt;id&gt; — record today's progress\n"+
			"• /completed — list completed habits\n"+
			"• /help — more commands",
		escape(name),
	)

	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Commands</b>\n" +
		"• /new — add a habit step by step\n" +
		"• /tasks — active habits with progress buttons\n" +
		"• /done &lt;id&gt; — record today's progress (once per day)\n" +
		"• /edit &lt;id&gt; — change title, description, category or goal\n" +
		"• /complete &lt;id&gt; — mark a habit completed\n" +
		"• /reopen &lt;id&gt; — put a completed habit back in progress\n" +
		"• /completed — list completed habits\n" +
		"• /delete &lt;id&gt; — remove a habit permanently\n" +
		"• /cancel — abort the current dialog"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) startNewTaskConversation(msg *tgbotapi.Message) error {
	b.setConversation(msg.From.ID, &conversationState{stage: stageTitle})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New habit.\n<b>Step 1:</b> what should it be called?", cancelKeyboard())
}

func (b *Bot) startEditConversation(ctx context.Context, msg *tgbotapi.Message) error {
	return b.withTaskID(msg, func(id uint) error {
		task, err := b.taskSvc.GetByID(ctx, id)
		if err != nil {
			return b.sendError(msg.Chat.ID, err)
		}
		if task == nil {
			return b.sendText(msg.Chat.ID, "Habit not found.")
		}
		b.setConversation(msg.From.ID, &conversationState{stage: stageTitle, editID: id})
		return b.sendWithReplyMarkup(msg.Chat.ID,
			fmt.Sprintf("✏️ Editing <b>%s</b>.\nSend a new title (or «%s»).", escape(task.Title), btnSkip),
			skipKeyboard())
	})
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageTitle:
		if !isSkipInput(text) {
			state.input.Title = text
		} else if state.editID == 0 {
			return b.sendWithReplyMarkup(msg.Chat.ID, "A habit needs a title.", cancelKeyboard())
		}
		state.stage = stageDescription
		return b.sendWithReplyMarkup(msg.Chat.ID, "✏️ Add a short description (or «Skip»).", skipKeyboard())
	case stageDescription:
		if !isSkipInput(text) {
			state.input.Description = text
		}
		state.stage = stageCategory
		return b.sendWithReplyMarkup(msg.Chat.ID, "🏷 Pick a category (or «Skip» for other).", categoryKeyboard())
	case stageCategory:
		if !isSkipInput(text) {
			category, err := model.ParseCategory(strings.ToLower(text))
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Pick one of the listed categories or «Skip».", categoryKeyboard())
			}
			state.input.Category = category
		}
		state.stage = stageGoalDays
		return b.sendWithReplyMarkup(msg.Chat.ID,
			fmt.Sprintf("🎯 Over how many days? (default %d, «Skip» to accept)", model.DefaultGoalDays),
			skipKeyboard())
	case stageGoalDays:
		if !isSkipInput(text) {
			days, err := strconv.Atoi(text)
			if err != nil || days < 1 {
				return b.sendWithReplyMarkup(msg.Chat.ID, "The goal must be a positive number of days.", skipKeyboard())
			}
			state.input.GoalDays = days
		}
		err := b.finishConversation(ctx, state, msg.Chat.ID)
		b.clearConversation(msg.From.ID)
		return err
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Dialog reset. Try again with /new.")
	}
}

func (b *Bot) finishConversation(ctx context.Context, state *conversationState, chatID int64) error {
	var task *model.Task
	var err error
	if state.editID != 0 {
		task, err = b.editTask(ctx, state.editID, state.input)
	} else {
		task, err = b.taskSvc.Create(ctx, state.input, time.Now())
	}
	if err != nil {
		return b.sendTextWithRemove(chatID, fmt.Sprintf("Could not save the habit: %s", escape(err.Error())))
	}

	log.Printf("[info] task saved id=%d goal=%d category=%s", task.ID, task.GoalDays, task.Category)

	var summary strings.Builder
	summary.WriteString("✅ <b>Habit saved</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>ID:</b> %d\n", task.ID))
	summary.WriteString(fmt.Sprintf("• <b>Title:</b> %s\n", escape(task.Title)))
	if task.Description != "" {
		summary.WriteString(fmt.Sprintf("• <b>Description:</b> %s\n", escape(task.Description)))
	}
	summary.WriteString(fmt.Sprintf("• <b>Category:</b> %s\n", task.Category))
	summary.WriteString(fmt.Sprintf("• <b>Goal:</b> %d days\n", task.GoalDays))

	if err := b.sendTextWithRemove(chatID, strings.TrimSpace(summary.String())); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, model.StatusInProgress)
}

// editTask fills unset input fields from the stored task so a skipped
// step keeps the old value.
func (b *Bot) editTask(ctx context.Context, id uint, input service.TaskInput) (*model.Task, error) {
	current, err := b.taskSvc.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, service.ErrTaskNotFound
	}
	if strings.TrimSpace(input.Title) == "" {
		input.Title = current.Title
	}
	if input.Description == "" {
		input.Description = current.Description
	}
	return b.taskSvc.Edit(ctx, id, input)
}

func (b *Bot) handleDone(ctx context.Context, msg *tgbotapi.Message) error {
	return b.withTaskID(msg, func(id uint) error {
		return b.recordProgress(ctx, msg.Chat.ID, id)
	})
}

func (b *Bot) recordProgress(ctx context.Context, chatID int64, id uint) error {
	task, err := b.taskSvc.RecordProgress(ctx, id, time.Now())
	switch {
	case errors.Is(err, service.ErrAlreadyUpdatedToday):
		return b.sendText(chatID, "✋ Already recorded today. Come back tomorrow!")
	case errors.Is(err, service.ErrTaskNotFound):
		return b.sendText(chatID, "Habit not found.")
	case err != nil:
		return b.sendError(chatID, err)
	}

	log.Printf("[info] progress recorded task=%d progress=%d streak=%d", task.ID, task.CurrentProgress, task.Streak)

	text := fmt.Sprintf("✅ <b>%s</b>: day %d of %d (%.0f%%)\n🔥 Streak: %d",
		escape(task.Title), task.CurrentProgress, task.GoalDays,
		task.ProgressPercentage()*100, task.Streak)
	return b.sendText(chatID, text)
}

func (b *Bot) statusChange(ctx context.Context, chatID int64, id uint, status model.Status) error {
	var err error
	if status == model.StatusCompleted {
		err = b.taskSvc.Complete(ctx, id)
	} else {
		err = b.taskSvc.Reopen(ctx, id)
	}
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		return b.sendText(chatID, "Habit not found.")
	case err != nil:
		return b.sendError(chatID, err)
	}

	if status == model.StatusCompleted {
		return b.sendText(chatID, fmt.Sprintf("🏁 Habit #%d marked completed. Progress and streak are kept.", id))
	}
	return b.sendText(chatID, fmt.Sprintf("🔄 Habit #%d is back in progress.", id))
}

func (b *Bot) deleteTask(ctx context.Context, chatID int64, id uint) error {
	if err := b.taskSvc.Remove(ctx, id); err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, fmt.Sprintf("🗑 Habit #%d deleted.", id))
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, status model.Status) error {
	tasks, err := b.taskSvc.ListByStatus(ctx, status)
	if err != nil {
		return b.sendError(chatID, err)
	}

	if len(tasks) == 0 {
		if status == model.StatusCompleted {
			return b.sendText(chatID, "No completed habits yet.")
		}
		return b.sendText(chatID, "No active habits. Add one with /new.")
	}

	now := time.Now()
	var builder strings.Builder
	var buttons [][]tgbotapi.InlineKeyboardButton

	if status == model.StatusCompleted {
		builder.WriteString("🏁 <b>Completed habits</b>\n\n")
	} else {
		builder.WriteString("📋 <b>Active habits</b>\nTap a button to record today's progress.\n\n")
	}

	for _, task := range tasks {
		builder.WriteString(formatTaskLine(task, now))

		var row []tgbotapi.InlineKeyboardButton
		label := fmt.Sprintf("#%d · %s", task.ID, shortTitle(task.Title, 20))
		if status == model.StatusCompleted {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData("🔄 "+label, fmt.Sprintf("%s%d", cbReopenPrefix, task.ID)))
		} else {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData("✅ "+label, fmt.Sprintf("%s%d", cbProgressPrefix, task.ID)))
			row = append(row, tgbotapi.NewInlineKeyboardButtonData("🏁", fmt.Sprintf("%s%d", cbCompletePrefix, task.ID)))
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("🗑", fmt.Sprintf("%s%d", cbDeletePrefix, task.ID)))
		buttons = append(buttons, row)
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(msg)
	return err
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	chatID := cb.Message.Chat.ID
	if !b.allowed(chatID) {
		return nil
	}

	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("callback ack: %v", err)
	}

	data := cb.Data
	switch {
	case strings.HasPrefix(data, cbProgressPrefix):
		id, err := parseTaskID(data, cbProgressPrefix)
		if err != nil {
			return err
		}
		return b.recordProgress(ctx, chatID, id)
	case strings.HasPrefix(data, cbCompletePrefix):
		id, err := parseTaskID(data, cbCompletePrefix)
		if err != nil {
			return err
		}
		return b.statusChange(ctx, chatID, id, model.StatusCompleted)
	case strings.HasPrefix(data, cbReopenPrefix):
		id, err := parseTaskID(data, cbReopenPrefix)
		if err != nil {
			return err
		}
		return b.statusChange(ctx, chatID, id, model.StatusInProgress)
	case strings.HasPrefix(data, cbDeletePrefix):
		id, err := parseTaskID(data, cbDeletePrefix)
		if err != nil {
			return err
		}
		return b.deleteTask(ctx, chatID, id)
	}
	return nil
}

func (b *Bot) withTaskID(msg *tgbotapi.Message, fn func(id uint) error) error {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Give me a habit id: /%s 3", msg.Command()))
	}
	id64, err := strconv.ParseUint(args, 10, 64)
	if err != nil {
		return b.sendText(msg.Chat.ID, "The habit id must be a number.")
	}
	return fn(uint(id64))
}

func (b *Bot) sendError(chatID int64, err error) error {
	return b.sendText(chatID, fmt.Sprintf("Something went wrong: %s", escape(err.Error())))
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendTextWithRemove(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

func parseTaskID(data, prefix string) (uint, error) {
	raw := strings.TrimPrefix(data, prefix)
	id64, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse task id %q: %w", raw, err)
	}
	return uint(id64), nil
}

func isSkipInput(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	return lower == "skip" || lower == "-" || strings.TrimSpace(text) == btnSkip
}

func isCancelDialogInput(text string) bool {
	return strings.TrimSpace(text) == btnCancelDialog
}

func escape(s string) string {
	return html.EscapeString(s)
}

func shortTitle(title string, limit int) string {
	title = strings.TrimSpace(title)
	runes := []rune(title)
	if len(runes) <= limit {
		return title
	}
	return string(runes[:limit-1]) + "…"
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNewTask),
			tgbotapi.NewKeyboardButton(menuLabelTasks),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelDone),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)),
	)
	kb.ResizeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func categoryKeyboard() tgbotapi.ReplyKeyboardMarkup {
	categories := model.Categories()
	var rows [][]tgbotapi.KeyboardButton
	for i := 0; i < len(categories); i += 3 {
		end := i + 3
		if end > len(categories) {
			end = len(categories)
		}
		var row []tgbotapi.KeyboardButton
		for _, c := range categories[i:end] {
			row = append(row, tgbotapi.NewKeyboardButton(c.String()))
		}
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnSkip),
		tgbotapi.NewKeyboardButton(btnCancelDialog),
	))
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	return kb
}
