package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/zhouzirui/lingo-chat/backend/internal/auth"
	"github.com/zhouzirui/lingo-chat/backend/internal/model/membership"
)

func main() {
	log.SetFlags(0)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	tier := flag.String("tier", "yearly", "会员等级: quarterly / yearly / lifetime")
	user := flag.String("user", "", "用户 ID，留空则自动生成")
	device := flag.String("device", "", "设备 ID，留空则自动生成")
	ttl := flag.Duration("ttl", 24*time.Hour, "凭证有效期")
	cookie := flag.Bool("cookie", false, "输出 Cookie 头而不是裸凭证")

	flag.Parse()

	secret := os.Getenv("AUTH_SESSION_SECRET")
	if secret == "" {
		log.Fatal("请先设置 AUTH_SESSION_SECRET")
	}

	parsed := membership.ParseTier(*tier)
	if !parsed.Valid() {
		flag.Usage()
		log.Fatalf("未知的会员等级: %q", *tier)
	}

	identity := membership.Identity{
		UserID:   *user,
		Tier:     parsed,
		DeviceID: *device,
	}
	if identity.UserID == "" {
		identity.UserID = "user-" + uuid.NewString()
	}
	if identity.DeviceID == "" {
		identity.DeviceID = uuid.NewString()
	}

	token, err := auth.SignSession(secret, identity, *ttl)
	if err != nil {
		log.Fatalf("签发失败: %v", err)
	}

	if *cookie {
		name := os.Getenv("AUTH_COOKIE_NAME")
		if name == "" {
			name = auth.DefaultCookieName
		}
		fmt.Printf("Cookie: %s=%s\n", name, token)
		return
	}
	fmt.Println(token)
}
