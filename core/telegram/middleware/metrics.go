package middleware

import tele "gopkg.in/telebot.v4"

const repliesKey = "replies"

// replies tallies what a handler sent back to the user.
type replies struct {
	count    int
	keyboard bool
}

func (r *replies) add(opts []interface{}) {
	r.count++
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.ReplyMarkup:
			r.keyboard = r.keyboard || v != nil
		case *tele.SendOptions:
			r.keyboard = r.keyboard || (v != nil && v.ReplyMarkup != nil)
		}
	}
}

type countingContext struct {
	tele.Context
	r *replies
}

func (c countingContext) Send(what interface{}, opts ...interface{}) error {
	return c.count(c.Context.Send(what, opts...), opts)
}

func (c countingContext) Reply(what interface{}, opts ...interface{}) error {
	return c.count(c.Context.Reply(what, opts...), opts)
}

func (c countingContext) Edit(what interface{}, opts ...interface{}) error {
	return c.count(c.Context.Edit(what, opts...), opts)
}

func (c countingContext) count(err error, opts []interface{}) error {
	if err == nil {
		c.r.add(opts)
	}
	return err
}

// MessageMetricsMiddleware counts the messages a handler sends or edits
// through its context. Read the result with Replies.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		r := &replies{}
		c.Set(repliesKey, r)
		return next(countingContext{Context: c, r: r})
	}
}

// Replies reports how many messages the handler sent and whether any carried a keyboard.
func Replies(c tele.Context) (int, bool) {
	r, _ := c.Get(repliesKey).(*replies)
	if r == nil {
		return 0, false
	}
	return r.count, r.keyboard
}
