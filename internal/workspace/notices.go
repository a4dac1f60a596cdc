package workspace

// NoticeLevel separates advisory notices from dismissible alerts.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeWarn
	NoticeError
)

// Notice is a user-facing message. Persistent notices (offline,
// rate-limit countdowns) stay until cleared by the workspace;
// everything else is dismissible.
type Notice struct {
	ID         int
	Level      NoticeLevel
	Text       string
	Persistent bool
}

func (w *Workspace) Notices() []Notice { return w.notices }

func (w *Workspace) DismissNotice(id int) {
	for i, n := range w.notices {
		if n.ID == id && !n.Persistent {
			w.notices = append(w.notices[:i], w.notices[i+1:]...)
			return
		}
	}
}

func (w *Workspace) pushNotice(level NoticeLevel, text string, persistent bool) int {
	w.noticeSeq++
	w.notices = append(w.notices, Notice{
		ID:         w.noticeSeq,
		Level:      level,
		Text:       text,
		Persistent: persistent,
	})
	return w.noticeSeq
}

func (w *Workspace) removeNotice(id int) {
	for i, n := range w.notices {
		if n.ID == id {
			w.notices = append(w.notices[:i], w.notices[i+1:]...)
			return
		}
	}
}
