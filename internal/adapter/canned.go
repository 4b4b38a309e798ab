package adapter

import "strings"

// CannedPrefix marks every canned narrative so it is never mistaken for live data.
const CannedPrefix = "⚠️ *Using sample data (Analytics server unavailable)*\n\n"

type cannedTopic struct {
	keywords []string
	text     string
}

// Order matters: the first topic with a matching keyword wins.
var cannedTopics = []cannedTopic{
	{
		keywords: []string{"traffic", "visitors", "users"},
		text:     "Based on sample analytics data, you've had 24,567 users this month, which represents a 12.5% increase from last month. Your traffic peaks typically occur on Tuesdays and Wednesdays, with the highest traffic coming from organic search (45.2%) followed by direct traffic (28.7%).",
	},
	{
		keywords: []string{"device", "mobile"},
		text:     "Your users are primarily accessing your site from desktop devices (52.3%), followed by mobile (37.4%) and tablet (9.1%). Mobile traffic has been growing steadily, increasing by 15% over the past quarter.",
	},
	{
		keywords: []string{"bounce", "engagement"},
		text:     "Your overall bounce rate is 32.4%, which is quite good! Your blog pages have the lowest bounce rate at 23.1%, while your contact page has the highest at 67.8%. Users spend an average of 2 minutes and 34 seconds on your site.",
	},
	{
		keywords: []string{"conversion", "goals"},
		text:     "Your conversion rate is currently 3.2%, with the highest converting age group being 25-34 (4.1% conversion rate). The 'Products' page has the highest conversion rate at 5.8%, while social media traffic converts at 2.1%.",
	},
	{
		keywords: []string{"page", "content", "top"},
		text:     "Your top performing pages are: Homepage (15,234 views), Products (8,945 views), and About (6,723 views). The blog section shows strong engagement with an average time on page of 4 minutes and 45 seconds.",
	},
	{
		keywords: []string{"source", "referral", "channel"},
		text:     "Your traffic sources breakdown: Organic Search (45.2%), Direct (28.7%), Social Media (12.4%), Referral (8.9%), and Email (4.8%). Google is your top referrer, driving 38% of your total traffic.",
	},
	{
		keywords: []string{"realtime", "real-time", "live"},
		text:     "Currently showing 23 active users on your site. They're primarily from United States (12 users), Canada (4 users), and United Kingdom (3 users). Most are using desktop devices (15) with mobile (8) users also active.",
	},
}

const cannedDefault = "I can help you analyze various aspects of your Google Analytics data including traffic patterns, user behavior, conversion rates, and audience demographics. Could you be more specific about what you'd like to know?\n\n" +
	"For example, you can ask about:\n" +
	"• Traffic and visitor trends\n" +
	"• Top performing pages\n" +
	"• Device and browser usage\n" +
	"• Traffic sources and channels\n" +
	"• Real-time user activity\n" +
	"• Engagement metrics"

// CannedNarrative picks a fixed sample answer by keyword. It never contacts the server.
func CannedNarrative(question string) string {
	q := strings.ToLower(question)
	for _, topic := range cannedTopics {
		for _, kw := range topic.keywords {
			if strings.Contains(q, kw) {
				return CannedPrefix + topic.text
			}
		}
	}
	return CannedPrefix + cannedDefault
}
