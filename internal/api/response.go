package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func NotFound(c *gin.Context, msg string) { Error(c, http.StatusNotFound, msg) }
func Internal(c *gin.Context, msg string) { Error(c, http.StatusInternalServerError, msg) }

// Messages shown on HTML pages.
const (
	msgGenericError  = "حدث خطأ غير متوقع. يرجى المحاولة مرة أخرى."
	msgNotFound      = "الصفحة أو الطلب المطلوب غير موجود."
	msgRateLimited   = "عدد كبير من المحاولات. يرجى الانتظار قليلاً ثم المحاولة مرة أخرى."
	msgSessionBusy   = "جاري إرسال طلبك بالفعل. يرجى الانتظار."
	msgBadLogin      = "اسم المستخدم أو كلمة المرور غير صحيحة"
	msgSessionExpiry = "انتهت صلاحية الجلسة. يرجى تسجيل الدخول مرة أخرى."
	msgStatusSaved   = "تم تحديث حالة الطلب بنجاح"
)

type messagePage struct {
	basePage
	Heading  string
	Body     string
	BackURL  string
	BackText string
}

// showMessage renders a standalone message page.
func showMessage(p pages, c *gin.Context, status int, heading, body, backURL, backText string) {
	p.render(c, status, "message", messagePage{
		basePage: basePage{Title: heading},
		Heading:  heading,
		Body:     body,
		BackURL:  backURL,
		BackText: backText,
	})
}

// redirect sends a 303 so that a POST is followed by a GET.
func redirect(c *gin.Context, location string) {
	c.Redirect(http.StatusSeeOther, location)
}
