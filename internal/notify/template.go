package notify

import (
	"fmt"
	"html"
	"strings"

	"mailroom/backend/internal/domain"
)

// PickupNotice 取件通知的渲染输入
type PickupNotice struct {
	ContactName string
	Items       []domain.MailItem
}

// Subject 通知邮件主题
func (n *PickupNotice) Subject() string {
	letters, packages := n.counts()
	switch {
	case packages > 0 && letters > 0:
		return "You have mail and packages ready for pickup"
	case packages > 0:
		return fmt.Sprintf("You have %d package(s) ready for pickup", packages)
	default:
		return fmt.Sprintf("You have %d letter(s) ready for pickup", letters)
	}
}

// TextBody 纯文本正文
func (n *PickupNotice) TextBody() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", n.ContactName)
	b.WriteString("The following mail has arrived for you:\n\n")
	for _, item := range n.Items {
		fmt.Fprintf(&b, "  - %s x%d (received %s)\n",
			itemLabel(item.Type), item.Quantity, item.ReceivedAt.Format("Jan 2, 2006"))
	}
	b.WriteString("\nPlease stop by the front desk during business hours to pick it up.\n")
	return b.String()
}

// HTMLBody HTML 正文
func (n *PickupNotice) HTMLBody() string {
	var b strings.Builder
	// 联系人姓名来自录入表单，拼进 HTML 前转义
	fmt.Fprintf(&b, "<p>Hello %s,</p><p>The following mail has arrived for you:</p><ul>", html.EscapeString(n.ContactName))
	for _, item := range n.Items {
		fmt.Fprintf(&b, "<li>%s &times;%d (received %s)</li>",
			itemLabel(item.Type), item.Quantity, item.ReceivedAt.Format("Jan 2, 2006"))
	}
	b.WriteString("</ul><p>Please stop by the front desk during business hours to pick it up.</p>")
	return b.String()
}

func (n *PickupNotice) counts() (letters, packages int) {
	for _, item := range n.Items {
		if item.Type == domain.MailItemPackage {
			packages += item.Quantity
		} else {
			letters += item.Quantity
		}
	}
	return
}

func itemLabel(t domain.MailItemType) string {
	if t == domain.MailItemPackage {
		return "Package"
	}
	return "Letter"
}
